package model

// Counters holds the running totals reported at the end of an audit.
//
// Weak counts every weak account, including those also counted in
// LinkedDuplicates, which is a subset annotation.
type Counters struct {
	AccountsScanned  int `json:"accounts_scanned"`
	Weak             int `json:"weak"`
	NullCredential   int `json:"null_credential"`
	Malformed        int `json:"malformed"`
	LinkedDuplicates int `json:"linked_duplicates"`

	// Wordlist totals are copied from the index build.
	WordlistEntries    int `json:"wordlist_entries"`
	WordlistDuplicates int `json:"wordlist_duplicates"`
	EmptyLinesSkipped  int `json:"empty_lines_skipped"`
	SourcesFailed      int `json:"sources_failed"`
}

// Record updates the account counters for one classified result.
func (c *Counters) Record(r Result) {
	c.AccountsScanned++
	switch r.Classification {
	case ClassWeak:
		c.Weak++
	case ClassWeakWithLinkedDuplicate:
		c.Weak++
		c.LinkedDuplicates++
	case ClassNullCredential:
		c.NullCredential++
	case ClassMalformed:
		c.Malformed++
	case ClassCompliant:
	}
}

// Compliant returns the number of scanned accounts with no finding.
func (c Counters) Compliant() int {
	return c.AccountsScanned - c.Weak - c.NullCredential - c.Malformed
}

// Add accumulates other into c. Used to total counters across targets.
func (c *Counters) Add(other Counters) {
	c.AccountsScanned += other.AccountsScanned
	c.Weak += other.Weak
	c.NullCredential += other.NullCredential
	c.Malformed += other.Malformed
	c.LinkedDuplicates += other.LinkedDuplicates
	c.WordlistEntries += other.WordlistEntries
	c.WordlistDuplicates += other.WordlistDuplicates
	c.EmptyLinesSkipped += other.EmptyLinesSkipped
	c.SourcesFailed += other.SourcesFailed
}

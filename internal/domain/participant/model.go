package participant

// Participant is the directory shape consumed for roster snapshots and
// sender display names.
type Participant struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	RollNumber string `json:"rollNumber,omitempty"`
}

// FullName is the display name used for chat messages and rosters.
func (p *Participant) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Summary is the contact shape embedded in team/member reads.
type Summary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (p *Participant) Summary() Summary {
	return Summary{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName, Email: p.Email}
}

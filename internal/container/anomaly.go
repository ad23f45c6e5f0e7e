package container

// Verdict is the anomaly detector's classification of an ownership query.
type Verdict struct {
	Suspicious bool
	Reason     string
	Owned      int
	Total      int
}

// Err returns a *SuspiciousError for suspicious verdicts and nil otherwise.
func (v Verdict) Err(id ID) error {
	if !v.Suspicious {
		return nil
	}
	return &SuspiciousError{ContainerID: id, Owned: v.Owned, Total: v.Total, Reason: v.Reason}
}

// Check cross-checks an ownership result against the total tab population.
// An owned set as large as the population is the signature of a query that
// degraded into "all tabs" and is never trusted, even when a single container
// legitimately owns every open tab. Any tab whose owner is not id, including
// one the host left unattributed, marks the whole set as suspicious.
func Check(owned TabSet, id ID, total int) Verdict {
	v := Verdict{Owned: len(owned), Total: total}
	switch {
	case total > 0 && len(owned) == total:
		v.Suspicious = true
		v.Reason = "owned set equals tab population"
	case len(owned) > total:
		v.Suspicious = true
		v.Reason = "owned set exceeds tab population"
	default:
		for _, t := range owned {
			if t.ContainerID != id {
				v.Suspicious = true
				v.Reason = "tab owned by another container"
				break
			}
		}
	}
	return v
}

package model

// CategoryProjection is the derived monthly picture for one envelope.
// Available carries forward: available(m) = available(m-1) + assigned(m) +
// activity(m), with overspending (negative available) rolling into the next
// month unchanged.
type CategoryProjection struct {
	CategoryID string
	Month      Month
	Assigned   int64
	Activity   int64
	Available  int64
}

// Dashboard is the budget-wide monthly roll-up. Available is the ready-to-
// assign pool: cash held across all accounts as of month end, minus what the
// categories are already holding.
type Dashboard struct {
	Month     Month
	Inflow    int64
	Outflow   int64
	Available int64
}

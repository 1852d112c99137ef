package domain

import "fmt"

type ListingStatus int

const (
	ListingProgrammed ListingStatus = iota
	ListingActive
	ListingEnded
	ListingAuctioned
	ListingWaitingPayment
	ListingPaid
	ListingFinished
	ListingDisabled
)

func (s ListingStatus) String() string {
	switch s {
	case ListingProgrammed:
		return "programmed"
	case ListingActive:
		return "active"
	case ListingEnded:
		return "ended"
	case ListingAuctioned:
		return "auctioned"
	case ListingWaitingPayment:
		return "waiting_payment"
	case ListingPaid:
		return "paid"
	case ListingFinished:
		return "finished"
	case ListingDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

func ParseListingStatus(s string) (ListingStatus, error) {
	switch s {
	case "programmed":
		return ListingProgrammed, nil
	case "active":
		return ListingActive, nil
	case "ended":
		return ListingEnded, nil
	case "auctioned":
		return ListingAuctioned, nil
	case "waiting_payment":
		return ListingWaitingPayment, nil
	case "paid":
		return ListingPaid, nil
	case "finished":
		return ListingFinished, nil
	case "disabled":
		return ListingDisabled, nil
	}
	return 0, fmt.Errorf("unknown listing status %q", s)
}

// IsTerminal reports whether the lifecycle driver no longer touches the listing.
func (s ListingStatus) IsTerminal() bool {
	return s == ListingPaid || s == ListingFinished || s == ListingDisabled
}

// IsPostAuction reports whether the scheduled window no longer decides the status.
func (s ListingStatus) IsPostAuction() bool {
	switch s {
	case ListingAuctioned, ListingWaitingPayment, ListingPaid, ListingFinished:
		return true
	}
	return false
}

// TerminalStatuses lists the statuses excluded from a driver pass.
func TerminalStatuses() []ListingStatus {
	return []ListingStatus{ListingPaid, ListingFinished, ListingDisabled}
}

var transitions = map[ListingStatus][]ListingStatus{
	ListingProgrammed:     {ListingActive, ListingEnded, ListingDisabled},
	ListingActive:         {ListingEnded, ListingDisabled},
	ListingEnded:          {ListingAuctioned, ListingDisabled},
	ListingAuctioned:      {ListingWaitingPayment, ListingPaid, ListingDisabled},
	ListingWaitingPayment: {ListingAuctioned, ListingFinished, ListingPaid, ListingDisabled},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to ListingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

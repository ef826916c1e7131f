package mailbox

import (
	"github.com/emersion/go-imap"
)

// BuildSearchCriteria composes the unread-message predicate. Allowed senders
// are OR'd together; every blocked sender is AND-NOT'd in. Both lists may be
// set at once, so "UNSEEN FROM a OR FROM b NOT FROM c" is expressible.
func BuildSearchCriteria(allowedSenders, blockedSenders []string) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	if len(allowedSenders) > 0 {
		attachAllowed(criteria, allowedSenders)
	}

	for _, sender := range blockedSenders {
		criteria.Not = append(criteria.Not, fromCriteria(sender))
	}

	return criteria
}

func attachAllowed(criteria *imap.SearchCriteria, senders []string) {
	if len(senders) == 1 {
		criteria.Header.Add("From", senders[0])
		return
	}

	// IMAP OR is binary, so a longer allow-list folds into a left-nested
	// chain of pairs.
	left := fromCriteria(senders[0])
	for _, sender := range senders[1 : len(senders)-1] {
		parent := imap.NewSearchCriteria()
		parent.Or = [][2]*imap.SearchCriteria{{left, fromCriteria(sender)}}
		left = parent
	}
	criteria.Or = [][2]*imap.SearchCriteria{{left, fromCriteria(senders[len(senders)-1])}}
}

func fromCriteria(sender string) *imap.SearchCriteria {
	c := imap.NewSearchCriteria()
	c.Header.Add("From", sender)
	return c
}

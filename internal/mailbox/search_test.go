package mailbox

import (
	"testing"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectFrom walks a criteria tree and returns every FROM header term, in
// left-to-right order.
func collectFrom(c *imap.SearchCriteria) []string {
	if c == nil {
		return nil
	}
	var senders []string
	if from := c.Header.Get("From"); from != "" {
		senders = append(senders, from)
	}
	for _, pair := range c.Or {
		senders = append(senders, collectFrom(pair[0])...)
		senders = append(senders, collectFrom(pair[1])...)
	}
	return senders
}

func TestBuildSearchCriteriaUnseenOnly(t *testing.T) {
	criteria := BuildSearchCriteria(nil, nil)

	assert.Equal(t, []string{imap.SeenFlag}, criteria.WithoutFlags)
	assert.Empty(t, criteria.Header.Get("From"))
	assert.Empty(t, criteria.Or)
	assert.Empty(t, criteria.Not)
}

func TestBuildSearchCriteriaSingleAllowedSender(t *testing.T) {
	criteria := BuildSearchCriteria([]string{"billing@example.com"}, nil)

	assert.Equal(t, []string{imap.SeenFlag}, criteria.WithoutFlags)
	assert.Equal(t, "billing@example.com", criteria.Header.Get("From"))
	assert.Empty(t, criteria.Or)
}

func TestBuildSearchCriteriaMultipleAllowedSenders(t *testing.T) {
	senders := []string{"a@example.com", "b@example.com", "c@example.com"}
	criteria := BuildSearchCriteria(senders, nil)

	require.Len(t, criteria.Or, 1)
	assert.Empty(t, criteria.Header.Get("From"))
	assert.ElementsMatch(t, senders, collectFrom(criteria))
}

func TestBuildSearchCriteriaBlockedSenders(t *testing.T) {
	criteria := BuildSearchCriteria(nil, []string{"spam@example.com", "ads@example.com"})

	require.Len(t, criteria.Not, 2)
	assert.Equal(t, "spam@example.com", criteria.Not[0].Header.Get("From"))
	assert.Equal(t, "ads@example.com", criteria.Not[1].Header.Get("From"))
	assert.Empty(t, criteria.Or)
}

func TestBuildSearchCriteriaAllowAndBlockTogether(t *testing.T) {
	criteria := BuildSearchCriteria(
		[]string{"a@example.com", "b@example.com"},
		[]string{"spam@example.com"},
	)

	assert.Equal(t, []string{imap.SeenFlag}, criteria.WithoutFlags)
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, collectFrom(criteria))
	require.Len(t, criteria.Not, 1)
	assert.Equal(t, "spam@example.com", criteria.Not[0].Header.Get("From"))
}

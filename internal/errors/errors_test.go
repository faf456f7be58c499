package appErrors_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/message-scheduler/internal/errors"
)

func TestTruncateBoundsRunes(t *testing.T) {
	long := strings.Repeat("é", 1500)
	got := appErrors.Truncate(long, 1000)
	assert.Equal(t, 1000, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "short", appErrors.Truncate("  short  ", 1000))
}

func TestTruncateSanitizesRemoteBytes(t *testing.T) {
	got := appErrors.Truncate("Erreur: passerelle d\xe9faillante\x00", 1000)
	assert.True(t, utf8.ValidString(got))
	assert.NotContains(t, got, "\x00")
	assert.Equal(t, "Erreur: passerelle d\uFFFDfaillante", got)

	got = appErrors.Truncate(strings.Repeat("\xff", 20), 5)
	assert.Equal(t, "\uFFFD", got)
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := errors.Wrap(appErrors.NewScheduledMessageNotFound("abc"), "update")
	assert.True(t, appErrors.IsNotFound(err))
	assert.False(t, appErrors.IsNotPending(err))

	err = errors.Wrap(appErrors.NewNotPending("abc", "SENT"), "update")
	assert.True(t, appErrors.IsNotPending(err))

	assert.True(t, appErrors.IsValidation(appErrors.NewValidation("message", "required")))
}

func TestDeliveryErrorCarriesBody(t *testing.T) {
	err := appErrors.NewDelivery(422, `{"error":"invalid"}`)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), `{"error":"invalid"}`)
}

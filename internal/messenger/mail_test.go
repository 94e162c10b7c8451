package messenger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStampEmail(t *testing.T) {
	tests := []struct {
		name        string
		message     any
		tags        []string
		description string
	}{
		{
			name:        "single recipient",
			message:     &Email{To: []string{"kevin@example.com"}, Subject: "Welcome", Headers: map[string]string{TagHeader: "onboarding"}},
			tags:        []string{"onboarding"},
			description: `"Welcome" to "kevin@example.com"`,
		},
		{
			name:        "many recipients",
			message:     &Email{To: []string{"a@example.com", "b@example.com"}, Subject: "Digest"},
			description: "Digest",
		},
		{
			name:    "no subject",
			message: &Email{To: []string{"a@example.com"}, Headers: map[string]string{TagHeader: " weekly "}},
			tags:    []string{"weekly"},
		},
		{
			name:    "not an email",
			message: orderPlaced{ID: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := StampEmail(NewEnvelope(tt.message))

			var tags []string
			for _, stamp := range All[TagStamp](env) {
				tags = append(tags, stamp.Values...)
			}
			assert.Equal(t, tt.tags, tags)

			description, ok := Last[DescriptionStamp](env)
			assert.Equal(t, tt.description != "", ok)
			assert.Equal(t, tt.description, description.Value)
		})
	}
}

func TestEmail_AllHeaders(t *testing.T) {
	email := &Email{
		From:    "noreply@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Digest",
		Headers: map[string]string{TagHeader: "digest"},
	}

	assert.Equal(t, map[string]string{
		"From":    "noreply@example.com",
		"To":      "a@example.com, b@example.com",
		"Subject": "Digest",
		TagHeader: "digest",
	}, email.AllHeaders())
	assert.Equal(t, "mail.Email", TypeOf(email))
}

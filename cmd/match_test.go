//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nip-resolver/internal/config"
	"github.com/sells-group/nip-resolver/internal/identity"
)

func TestMatchCmd_RunE_RequiresSalesforce(t *testing.T) {
	offlineConfig(t)
	setFlag(t, &matchTarget, identity.Target{Email: "anna@aldent.pl"})

	_, err := runCmd(t, matchCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "salesforce.client_id, salesforce.username and salesforce.key_path are required")
}

func TestMatchCmd_RunE_RequiresTarget(t *testing.T) {
	offlineConfig(t)
	cfg.Salesforce = config.SalesforceConfig{
		ClientID: "3MVG9",
		Username: "integration@aldent.pl",
		KeyPath:  "server.key",
	}
	setFlag(t, &matchTarget, identity.Target{})

	_, err := runCmd(t, matchCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one of --email, --phone, --first, --last, --parent is required")
}

func TestMatchCmd_RunE_BadKeyPath(t *testing.T) {
	offlineConfig(t)
	cfg.Salesforce = config.SalesforceConfig{
		ClientID: "3MVG9",
		Username: "integration@aldent.pl",
		KeyPath:  "missing.key",
	}
	setFlag(t, &matchTarget, identity.Target{Email: "anna@aldent.pl", LastName: "Nowak"})

	_, err := runCmd(t, matchCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init salesforce")
}

func TestMatchCmd_Flags(t *testing.T) {
	tests := []struct {
		flag string
		set  string
		got  func() string
	}{
		{"email", "anna@aldent.pl", func() string { return matchTarget.Email }},
		{"phone", "501234567", func() string { return matchTarget.Phone }},
		{"first", "Anna", func() string { return matchTarget.FirstName }},
		{"last", "Nowak", func() string { return matchTarget.LastName }},
		{"parent", "001H", func() string { return matchTarget.ParentID }},
	}
	setFlag(t, &matchTarget, identity.Target{})
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			require.NoError(t, matchCmd.Flags().Set(tt.flag, tt.set))
			assert.Equal(t, tt.set, tt.got())
		})
	}
}

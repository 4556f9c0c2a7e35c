package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"basic flow start", StatusUnverified, StatusBasicPending, true},
		{"basic verification", StatusBasicPending, StatusBasicVerified, true},
		{"kyc submission after basic", StatusBasicVerified, StatusKYCPending, true},
		{"kyc submission from fresh account", StatusUnverified, StatusKYCPending, true},
		{"kyc approval", StatusKYCPending, StatusKYCVerified, true},
		{"rejection from pending", StatusKYCPending, StatusRejected, true},
		{"rejection of verified user", StatusKYCVerified, StatusRejected, true},
		{"resubmission after rejection", StatusRejected, StatusKYCPending, true},
		{"no-op transition", StatusKYCPending, StatusKYCPending, true},

		{"cannot submit while basic pending", StatusBasicPending, StatusKYCPending, false},
		{"cannot verify without submission", StatusUnverified, StatusKYCVerified, false},
		{"cannot verify from basic", StatusBasicVerified, StatusKYCVerified, false},
		{"cannot regress verified", StatusKYCVerified, StatusKYCPending, false},
		{"cannot leave locked by transition", StatusLocked, StatusKYCVerified, false},
		{"cannot leave locked to rejected", StatusLocked, StatusRejected, false},
		{"rejected cannot jump to verified", StatusRejected, StatusKYCVerified, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		status  Status
		allowed bool
		reason  GateReason
	}{
		{StatusKYCVerified, true, GateVerified},
		{StatusKYCPending, false, GatePending},
		{StatusRejected, false, GateRejected},
		{StatusLocked, false, GateLocked},
		{StatusUnverified, false, GateNotSubmitted},
		{StatusBasicPending, false, GateNotSubmitted},
		{StatusBasicVerified, false, GateNotSubmitted},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			decision := Decide(tc.status)
			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.reason, decision.Reason)
			assert.Equal(t, tc.status, decision.Status)
		})
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusKYCVerified.Valid())
	assert.False(t, Status("APPROVED").Valid())
	assert.False(t, Status("").Valid())
}

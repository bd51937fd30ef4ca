package batch

import (
	"context"
	"fmt"
	"strings"
)

// UnauthorizedPolicy decides what happens to the rest of a batch once the
// lookup service rejects the api key.
type UnauthorizedPolicy string

const (
	PolicyAbort    UnauthorizedPolicy = "abort"
	PolicyContinue UnauthorizedPolicy = "continue"
	PolicyAsk      UnauthorizedPolicy = "ask"
)

// ConfirmFunc asks whether the batch should go on after a credential failure.
type ConfirmFunc func(ctx context.Context, c Candidate) (bool, error)

func ParsePolicy(s string) (UnauthorizedPolicy, error) {
	switch policy := UnauthorizedPolicy(strings.ToLower(strings.TrimSpace(s))); policy {
	case "":
		return PolicyAbort, nil
	case PolicyAbort, PolicyContinue, PolicyAsk:
		return policy, nil
	default:
		return "", fmt.Errorf("unknown unauthorized policy %q (want abort, continue or ask)", s)
	}
}

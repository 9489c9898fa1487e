package bus

import "context"

// StaticKeyAuth is the default AuthChecker: it compares authKey against a
// single configured key, ignoring encryptKey and appID. Deployments that
// need per-app keys or an external IAM call supply their own AuthChecker.
type StaticKeyAuth struct {
	Key string
}

// Check reports whether authKey matches the configured key.
func (a StaticKeyAuth) Check(_ context.Context, _, authKey, _ string) (bool, error) {
	return a.Key != "" && authKey == a.Key, nil
}

var _ AuthChecker = StaticKeyAuth{}

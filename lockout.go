package auth

import "time"

// lockoutPolicy applies the consecutive-failure rules to an account in
// memory. Persistence of the mutated record is the caller's concern.
type lockoutPolicy struct {
	threshold int
}

// precheck rejects accounts that must not reach password verification.
// Disabled wins over locked.
func (p lockoutPolicy) precheck(account *Account) error {
	if !account.Enabled {
		return ErrAccountDisabled
	}
	if account.Locked {
		return ErrAccountLocked
	}
	return nil
}

// recordFailure bumps the counter and reports whether this failure crossed
// the threshold. An already-locked account is left untouched.
func (p lockoutPolicy) recordFailure(account *Account) bool {
	if account.Locked {
		return false
	}
	account.FailedAttempts++
	if p.threshold > 0 && account.FailedAttempts >= p.threshold {
		account.Locked = true
		return true
	}
	return false
}

// recordSuccess clears the counter and stamps the login time.
func (p lockoutPolicy) recordSuccess(account *Account, now time.Time) {
	account.FailedAttempts = 0
	t := now
	account.LastLoginAt = &t
}

// unlock clears both the flag and the counter so the account starts fresh.
func (p lockoutPolicy) unlock(account *Account) {
	account.Locked = false
	account.FailedAttempts = 0
}

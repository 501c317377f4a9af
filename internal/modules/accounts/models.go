// Package accounts owns external funding accounts: the bank accounts a
// schedule draws contributions from. Verification and money movement against
// the aggregator happen in a remote collaborator; this module only records
// the linkage.
package accounts

// VerificationStatus is the aggregator-side verification state of a funding
// account, recorded as reported.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// FundingAccount is an external bank account linked to an investment
// account. Only a masked account number is ever stored.
type FundingAccount struct {
	ID                 string             `json:"funding_account_id"`
	AccountID          string             `json:"account_id"`
	Institution        string             `json:"institution"`
	AccountNumberMask  string             `json:"account_number_mask"`
	AccountType        string             `json:"account_type"` // checking, savings
	VerificationStatus VerificationStatus `json:"verification_status"`
	CreatedAt          string             `json:"created_at"` // RFC 3339
}

// Mask reduces a raw account number to its last four digits.
func Mask(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return accountNumber
	}
	return "****" + accountNumber[len(accountNumber)-4:]
}

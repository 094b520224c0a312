package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"floodguard/internal/models"
	"floodguard/internal/wallet"
)

const maxReasonLength = 200

// Classify maps a raw provider or node error onto the closed set of failure
// kinds. Errors that are already classified pass through unchanged.
func Classify(op string, err error) *models.FloodError {
	if err == nil {
		return nil
	}

	var fe *models.FloodError
	if errors.As(err, &fe) {
		return fe
	}

	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &models.FloodError{Kind: models.KindGenericFailure, Op: op, Reason: "ledger request timed out", Timeout: true, Err: err}
	case errorCode(err) == wallet.CodeUserRejected, strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return models.NewFloodError(models.KindUserRejected, op, "transaction cancelled by user", err)
	case strings.Contains(msg, "insufficient funds"):
		return models.NewFloodError(models.KindInsufficientFunds, op, "insufficient balance for transaction", err)
	case isRestricted(err):
		return models.NewFloodError(models.KindAuthorizationDenied, op, "access denied: only the contract owner can perform this action", err)
	default:
		return models.NewFloodError(models.KindGenericFailure, op, shortReason(err), err)
	}
}

// classifyEstimate classifies a failed gas estimation, which means the
// transaction would revert if sent
func classifyEstimate(op string, err error) *models.FloodError {
	fe := Classify(op, err)
	if fe.Kind == models.KindGenericFailure && !fe.Timeout {
		return models.NewFloodError(models.KindGenericFailure, op, "transaction will fail: "+fe.Reason, err)
	}
	return fe
}

// isRestricted looks for the owner-only revert selector in the error data
// and, for nodes that inline it, the message
func isRestricted(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data := dataErr.ErrorData(); data != nil && strings.Contains(strings.ToLower(fmt.Sprint(data)), RestrictedSelector) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, RestrictedSelector) || strings.Contains(msg, "ownableunauthorizedaccount")
}

func errorCode(err error) int {
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return 0
}

func shortReason(err error) string {
	reason := err.Error()
	if i := strings.IndexByte(reason, '\n'); i >= 0 {
		reason = reason[:i]
	}
	if len(reason) > maxReasonLength {
		reason = reason[:maxReasonLength] + "..."
	}
	return reason
}

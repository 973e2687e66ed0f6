package verification

import "listings_backend/pkg/gateway"

// Verify applies the settlement policy to a gateway answer: the payment must
// be settled and carry at least the expected amount. Overpayment is accepted.
func Verify(st gateway.Status, expected int64) error {
	if !st.Settled() {
		return &PaymentNotConfirmedError{RawStatus: st.RawStatus}
	}
	if st.Amount < expected {
		return &InsufficientAmountError{Expected: expected, Received: st.Amount}
	}
	return nil
}

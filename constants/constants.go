package constants

import "time"

// shared constants used by multiple packages

const (
	ORDER_STATE_INITIAL  = "initial"
	ORDER_STATE_OPEN     = "open"
	ORDER_STATE_FILLING  = "filling"
	ORDER_STATE_FILLED   = "filled"
	ORDER_STATE_FAILED   = "failed"
	ORDER_STATE_REJECTED = "rejected"

	POSITION_STATE_OPEN     = "Open"
	POSITION_STATE_CLOSING  = "Closing"
	POSITION_STATE_ROLLOVER = "Rollover"

	HTLC_STATUS_PENDING   = "Pending"
	HTLC_STATUS_SUCCEEDED = "Succeeded"
	HTLC_STATUS_FAILED    = "Failed"

	PAYMENT_FLOW_INBOUND  = "Inbound"
	PAYMENT_FLOW_OUTBOUND = "Outbound"
)

const (
	// An order which is still not terminal after this window is forced to
	// Failed(TimedOut) by the client-side sweep. The coordinator is never
	// responsible for giving up on a stale match attempt.
	ORDER_OUTDATED_AFTER = 5 * time.Minute

	// How often the client sweeps its open orders for staleness.
	ORDER_SWEEP_INTERVAL = 30 * time.Second
)

const (
	// Minimum final CLTV delta embedded in our invoices. lnd defaults to 9
	// (BOLT 11 now recommends 18), but the invoice recipient fails back
	// incoming HTLCs that are closer than HTLC_FAIL_BACK_BUFFER blocks to
	// their deadline, so the delta must clear that buffer with margin.
	MIN_FINAL_CLTV_EXPIRY_DELTA = 144

	// Block buffer before an incoming HTLC's expiry at which it is failed
	// back to avoid a forced on-chain claim.
	HTLC_FAIL_BACK_BUFFER = 23

	// Bounded retry budget for a single outbound payment. Retries are
	// delegated to the payment backend; the pipeline adds none of its own.
	PAYMENT_RETRY_ATTEMPTS = 10

	// Default invoice expiry when the caller does not specify one
	// (BOLT 11 default).
	INVOICE_DEFAULT_EXPIRY = time.Hour

	// Default budget for WaitForPayment when the caller passes no timeout.
	WAIT_FOR_PAYMENT_TIMEOUT = 10 * time.Second

	// Poll interval of WaitForPayment.
	WAIT_FOR_PAYMENT_INTERVAL = time.Second
)

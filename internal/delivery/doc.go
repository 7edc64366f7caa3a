// Package delivery mails built e-books to destination addresses.
//
// An Agent sends one message per destination over a Channel, retrying
// transient failures with the exponential policy from package retry. A
// destination rejected permanently is given up on while the others continue;
// destinations that already accepted the message are never re-sent within one
// Deliver call. The agent reports per-destination results and never touches
// the ledger.
package delivery

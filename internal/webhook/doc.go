// Package webhook implements the HTTP intake endpoint for order-status events.
//
// WooCommerce signs each delivery with base64(HMAC-SHA256(raw_body, secret))
// in the X-WC-Webhook-Signature header. The intake flow is:
//
//  1. HTTP POST arrives at /webhook/woocommerce
//  2. Raw body read exactly once, before any JSON parsing (the signature is
//     computed over the raw bytes)
//  3. If a signature header is present, verify it (401 on mismatch); an
//     unsigned delivery skips verification
//  4. Parse JSON (400 on malformed payload or non-object)
//  5. Filter on status: only "processing" orders are actionable; everything
//     else is acknowledged with 200 and never retried by the sender
//  6. Actionable events are handed to a background runner (fire-and-forget)
//     and 202 Accepted returned immediately
//
// The sender only ever learns whether the delivery was accepted; the outcome
// of the downstream portal automation is never reflected in the HTTP
// response.
//
// A manual trigger endpoint (/webhook/test-manual) exists for operational
// testing. It bypasses signature verification and is gated by
// webhook.dev_endpoint_enabled (403 when disabled).
package webhook

// Package notifier tells operators that a stream went live.
//
// It consumes stream.live events from the bus, suppresses repeats of the
// same target inside a dedup window (persisted in storage so a reload does
// not re-announce streams that were already live), paces sends with a rate
// limiter and retries failed sends with exponential backoff.
//
// Delivery goes through a Sender; Telegram (telebot) is the built-in one.
package notifier

package audio

// Drain reads from ch until it is closed, discarding all values. Use it for
// channels a consumer must empty but does not need, such as STT partials.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}

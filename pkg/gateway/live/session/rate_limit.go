package session

import "time"

// tokenBucket refills continuously at rate tokens per second up to capacity.
// last only advances by the time that turned into whole tokens, so frames
// arriving faster than 1/rate still accumulate credit.
type tokenBucket struct {
	rate     int64
	capacity int64
	tokens   int64
	last     time.Time
}

func newTokenBucket(rate int64, burstSeconds int64, now time.Time) *tokenBucket {
	if rate <= 0 {
		return nil
	}
	return &tokenBucket{rate: rate, capacity: rate * burstSeconds, tokens: rate * burstSeconds, last: now}
}

func (b *tokenBucket) refill(now time.Time) {
	if b == nil {
		return
	}
	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}
	if b.tokens >= b.capacity || elapsed >= time.Duration(b.capacity/b.rate)*time.Second {
		b.tokens = b.capacity
		b.last = now
		return
	}
	add := (elapsed.Nanoseconds() * b.rate) / int64(time.Second)
	if add <= 0 {
		return
	}
	if b.tokens+add >= b.capacity {
		b.tokens = b.capacity
		b.last = now
		return
	}
	b.tokens += add
	b.last = b.last.Add(time.Duration(add * int64(time.Second) / b.rate))
}

func (b *tokenBucket) has(n int64) bool {
	return b == nil || b.tokens >= n
}

func (b *tokenBucket) take(n int64) {
	if b != nil {
		b.tokens -= n
	}
}

// audioRateLimiter admits client audio frames within a frame rate and a byte
// rate. A nil limiter admits everything. It is used by the relay only.
type audioRateLimiter struct {
	now    func() time.Time
	frames *tokenBucket
	bytes  *tokenBucket
}

func newAudioRateLimiter(now func() time.Time, framesPerSecond int, bytesPerSecond int64, burstSeconds int) *audioRateLimiter {
	if framesPerSecond <= 0 && bytesPerSecond <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	if burstSeconds <= 0 {
		burstSeconds = 1
	}
	start := now()
	return &audioRateLimiter{
		now:    now,
		frames: newTokenBucket(int64(framesPerSecond), int64(burstSeconds), start),
		bytes:  newTokenBucket(bytesPerSecond, int64(burstSeconds), start),
	}
}

func (l *audioRateLimiter) Allow(frameBytes int) bool {
	if l == nil {
		return true
	}
	now := l.now()
	l.frames.refill(now)
	l.bytes.refill(now)

	n := int64(max(frameBytes, 0))
	if !l.frames.has(1) || !l.bytes.has(n) {
		return false
	}
	l.frames.take(1)
	l.bytes.take(n)
	return true
}

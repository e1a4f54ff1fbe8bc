package rpchandler

// RunIdle invokes every IdleStage once and returns the minimum reported
// ms_until_next across them (spec section 4.4.2: the minimum determines
// the next wakeup). A stage returning IdleStop ends the loop (keepGoing
// is false); IdleSkip contributes no wait bound.
func (h *Handler) RunIdle() (msUntilNext int, keepGoing bool) {
	ctx := &Context{Client: h.client}

	min := -1
	for _, s := range h.stages {
		is, ok := s.(IdleStage)
		if !ok {
			continue
		}
		ms, outcome := is.Idle(ctx)
		switch outcome {
		case IdleStop:
			return 0, false
		case IdleSkip:
			continue
		default:
			if min < 0 || ms < min {
				min = ms
			}
		}
	}
	if min < 0 {
		min = 0
	}
	return min, true
}

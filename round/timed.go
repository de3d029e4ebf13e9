package round

import (
	"fmt"
	"strconv"
	"time"
)

// timedRules play like Classic and arm a deadline after every move. A
// deadline that finds the signature it captured still current ends the
// round; any later move changes the signature and so disarms it.
type timedRules struct {
	classicRules
	timeoutSeconds int
}

func (t *timedRules) afterMove(r *Round) {
	sig := r.signature()
	key := "round:" + strconv.Itoa(r.ID)
	r.env.Scheduler.Schedule(key, time.Duration(t.timeoutSeconds)*time.Second, func() {
		r.expire(sig)
	})
}

func (t *timedRules) tags() []string {
	return []string{"Lightning", fmt.Sprintf("%d Second Timeout", t.timeoutSeconds)}
}

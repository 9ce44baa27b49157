package loader

import (
	"github.com/pcj/mobyprogress"
)

func (l *Loader) reportState(j *ModuleJob, st State) {
	if st.Finished() {
		l.finished.Add(1)
	}
	l.progress.WriteProgress(mobyprogress.Progress{
		ID:         j.url.String(),
		Action:     st.String(),
		Current:    l.finished.Load(),
		Total:      int64(l.modules.Len()),
		Units:      "modules",
		LastUpdate: st.Finished(),
	})
}

package server

import (
	"github.com/Zachkp/portfolio/internal/analytics"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/viewstate"
)

// TrackSections returns a session hook that records each section a page
// scrolls into view. The initial section is not counted, and pages requested
// with Do Not Track are skipped.
func TrackSections(tracker *analytics.Tracker) func(*session.Session) {
	return func(s *session.Session) {
		if s.DoNotTrack {
			return
		}
		// Observers run serialized under the coordinator lock.
		last := s.Coordinator.State().ActiveSection
		s.Coordinator.Subscribe(func(st viewstate.ViewState) {
			if st.ActiveSection == last {
				return
			}
			last = st.ActiveSection
			tracker.RecordSection(s.VisitorID, st.ActiveSection)
		})
	}
}

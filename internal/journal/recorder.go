package journal

import "time"

// Recorder appends events to one session.
type Recorder struct {
	j       *Journal
	session *Session
}

// NewRecorder starts a session in mode and returns a Recorder for it.
func (j *Journal) NewRecorder(mode string, at time.Time) (*Recorder, error) {
	s, err := j.Sessions().Start(mode, at)
	if err != nil {
		return nil, err
	}
	return &Recorder{j: j, session: s}, nil
}

// Session returns the recorded session.
func (r *Recorder) Session() *Session {
	return r.session
}

// Record stores e in the session. SessionID is filled in.
func (r *Recorder) Record(e Event) error {
	e.SessionID = r.session.ID
	return r.j.Events().Add(&e)
}

// End closes the session.
func (r *Recorder) End(at time.Time) error {
	return r.j.Sessions().End(r.session.ID, at)
}

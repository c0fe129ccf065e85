package feedstore

// taskOp names the feed service pipeline a transition schedules.
type taskOp int

const (
	opFetchAll taskOp = iota + 1
	opAdd
	opRemove
)

func (op taskOp) String() string {
	switch op {
	case opFetchAll:
		return "fetch_all"
	case opAdd:
		return "add"
	case opRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// task is asynchronous work requested by a transition.
type task struct {
	op        taskOp
	url       string
	forceLoad bool
}

// transition is the outcome of reducing one action.
type transition struct {
	state   State
	effects []Effect
	task    *task
}

// reduce computes the transition for action applied to s.
//
// reduce is pure: it never touches the store and never runs work, it only
// describes what to publish, emit and schedule.
func reduce(s State, action Action) transition {
	switch a := action.(type) {
	case Refresh:
		if s.Progress {
			return reject(s, ErrInProgress)
		}
		next := s
		next.Progress = true
		return transition{state: next, task: &task{op: opFetchAll, forceLoad: a.ForceLoad}}

	case Add:
		if s.Progress {
			return reject(s, ErrInProgress)
		}
		return transition{
			state: State{Progress: true, Feeds: s.Feeds},
			task:  &task{op: opAdd, url: a.URL},
		}

	case Delete:
		if s.Progress {
			return reject(s, ErrInProgress)
		}
		return transition{
			state: State{Progress: true, Feeds: s.Feeds},
			task:  &task{op: opRemove, url: a.URL},
		}

	case SelectFeed:
		if a.Feed != nil && !containsFeed(s.Feeds, *a.Feed) {
			return reject(s, ErrUnknownFeed)
		}
		next := s
		next.SelectedFeed = cloneFeedPtr(a.Feed)
		return transition{state: next}

	case Data:
		if !s.Progress {
			return reject(s, ErrUnexpectedAction)
		}
		feeds := append([]Feed{}, a.Feeds...)
		var selected *Feed
		if s.SelectedFeed != nil && containsFeed(feeds, *s.SelectedFeed) {
			selected = s.SelectedFeed
		}
		return transition{state: State{Progress: false, Feeds: feeds, SelectedFeed: selected}}

	case Error:
		if !s.Progress {
			return reject(s, ErrUnexpectedAction)
		}
		return transition{
			state:   State{Progress: false, Feeds: s.Feeds, SelectedFeed: s.SelectedFeed},
			effects: []Effect{ErrorEffect{Err: a.Err}},
		}

	default:
		return reject(s, ErrUnexpectedAction)
	}
}

// reject leaves s unchanged and reports err.
func reject(s State, err error) transition {
	return transition{state: s, effects: []Effect{ErrorEffect{Err: err}}}
}

func cloneFeedPtr(f *Feed) *Feed {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

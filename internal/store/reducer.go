package store

// Reduce returns the state that results from applying a to s. It is pure:
// s is passed by value and shared feature data is never touched.
func Reduce(s State, a Action) State {
	s.Map = reduceMap(s.Map, a)
	s.Control = reduceControl(s.Control, s, a)
	return s
}

func reduceMap(s MapState, a Action) MapState {
	switch a := a.(type) {
	case MapReady:
		s.Ready = true
	case UpdateCurrentLocation:
		s.Latitude = a.Latitude
		s.Longitude = a.Longitude
	}
	return s
}

func reduceControl(s ControlState, root State, a Action) ControlState {
	switch a := a.(type) {
	case ToggleDisplayTransmissionClusters:
		s.DisplayTransmissionClusters = a.Display
	case ToggleDisplayCaseClusters:
		s.DisplayCaseClusters = a.Display
	case SetSelectedCluster:
		s.SelectedCluster = a.Cluster
	case SetSelectedCase:
		s.SelectedCase = a.Feature
		s.SelectedCaseIndex = a.Index
	case SetDateRange:
		s.DaysBeforeEnd = a.NumberOfDays
		s.DateEndRange = root.Range.EndDate(a.NumberOfDays)
	}
	return s
}

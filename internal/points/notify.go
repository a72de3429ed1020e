package points

// Notifiers fans each notification out to every member.
type Notifiers []Notifier

func (ns Notifiers) Notify(ownerID int64, entity, action string, id int64, extra map[string]any) {
	for _, n := range ns {
		n.Notify(ownerID, entity, action, id, extra)
	}
}

package task

// Tracked fields and lifecycle sentinels recorded in the activity history.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldTags        = "tags"
	FieldDueDate     = "dueDate"
	FieldOrder       = "order"
	FieldArchived    = "archived"
	FieldIsActive    = "isActive"

	FieldCreated  = "_created"
	FieldMigrated = "_migrated"
)

// DeletedTaskTitle stands in for the title of a task that no longer exists.
const DeletedTaskTitle = "[Deleted Task]"

// DefaultActivityLimit is the page size for recent activity.
const DefaultActivityLimit = 50

// HistoryEntry records one field change. OldValue and NewValue hold the
// canonical text from ChangeValue.Encode; nil means the side was absent.
type HistoryEntry struct {
	ID        string  `json:"id"`
	TaskID    string  `json:"taskId"`
	Field     string  `json:"field"`
	OldValue  *string `json:"oldValue,omitempty"`
	NewValue  *string `json:"newValue,omitempty"`
	UserID    string  `json:"userId"`
	CreatedAt int64   `json:"createdAt"`
}

// Old decodes the old side, if present.
func (e HistoryEntry) Old() (ChangeValue, bool) {
	return decodeSide(e.OldValue)
}

// New decodes the new side, if present.
func (e HistoryEntry) New() (ChangeValue, bool) {
	return decodeSide(e.NewValue)
}

func decodeSide(raw *string) (ChangeValue, bool) {
	if raw == nil {
		return ChangeValue{}, false
	}
	v, err := ParseChangeValue(*raw)
	if err != nil {
		return StringValue(*raw), true
	}
	return v, true
}

// ActivityItem is a history entry joined with its task's current title.
type ActivityItem struct {
	HistoryEntry
	TaskTitle string `json:"taskTitle"`
}

type createdPayload struct {
	Title  string `json:"title"`
	Status Status `json:"status"`
}

type migratedPayload struct {
	Source string `json:"source"`
	Title  string `json:"title"`
}

// change is a pending history write computed by a mutation.
type change struct {
	field string
	from  *ChangeValue
	to    *ChangeValue
}

func ptr[T any](v T) *T { return &v }

// diff returns a change when the encodings of from and to differ.
func diff(field string, from, to *ChangeValue) (change, bool) {
	oldText, oldOK := encodeOptional(from)
	newText, newOK := encodeOptional(to)
	if oldOK == newOK && oldText == newText {
		return change{}, false
	}
	return change{field: field, from: from, to: to}, true
}

func (c change) entry(taskID, userID string) *HistoryEntry {
	e := &HistoryEntry{TaskID: taskID, Field: c.field, UserID: userID}
	if text, ok := encodeOptional(c.from); ok {
		e.OldValue = &text
	}
	if text, ok := encodeOptional(c.to); ok {
		e.NewValue = &text
	}
	return e
}

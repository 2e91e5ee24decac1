package eventbus

type RunEventType string

const (
	RunEventCreated    RunEventType = "RunCreated"
	RunEventCompleted  RunEventType = "RunCompleted"
	RunEventFailed     RunEventType = "RunFailed"
	UnitEventGenerated RunEventType = "UnitGenerated"
	UnitEventFailed    RunEventType = "UnitFailed"
	UnitEventUnlocked  RunEventType = "UnitUnlocked"
)

type RunEvent struct {
	Type      RunEventType
	RunID     string
	Title     string
	UnitIndex int
	UnitTitle string
	ErrorMsg  string
}

type RunEventHandler = Handler[RunEvent]
type RunEventBus = Bus[RunEventType, RunEvent]

func NewRunEventBus() *RunEventBus {
	return NewBus[RunEventType, RunEvent]()
}

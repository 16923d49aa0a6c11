package store

// Choice pairs a stored code with its display label.
type Choice struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type ServiceType string

const (
	ServiceStandard ServiceType = "standard"
	ServiceDeep     ServiceType = "deep"
	ServiceMoveOut  ServiceType = "move_out"
	ServiceOffice   ServiceType = "office"
)

// ServiceChoices is ordered the way every listing and report presents services.
var ServiceChoices = []Choice{
	{Code: string(ServiceStandard), Label: "Standard Cleaning"},
	{Code: string(ServiceDeep), Label: "Deep Cleaning"},
	{Code: string(ServiceMoveOut), Label: "Move In/Out"},
	{Code: string(ServiceOffice), Label: "Office Cleaning"},
}

func (s ServiceType) Valid() bool { return validChoice(ServiceChoices, string(s)) }

func (s ServiceType) Label() string { return labelFor(ServiceChoices, string(s)) }

type BookingStatus string

const (
	StatusScheduled  BookingStatus = "scheduled"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
)

var StatusChoices = []Choice{
	{Code: string(StatusScheduled), Label: "Scheduled"},
	{Code: string(StatusInProgress), Label: "In Progress"},
	{Code: string(StatusCompleted), Label: "Completed"},
	{Code: string(StatusCancelled), Label: "Cancelled"},
}

func (s BookingStatus) Valid() bool { return validChoice(StatusChoices, string(s)) }

func (s BookingStatus) Label() string { return labelFor(StatusChoices, string(s)) }

type WorkerResponse string

const (
	ResponsePending  WorkerResponse = "pending"
	ResponseAccepted WorkerResponse = "accepted"
	ResponseDeclined WorkerResponse = "declined"
)

var WorkerResponseChoices = []Choice{
	{Code: string(ResponsePending), Label: "Awaiting Response"},
	{Code: string(ResponseAccepted), Label: "Accepted"},
	{Code: string(ResponseDeclined), Label: "Declined"},
}

func (r WorkerResponse) Valid() bool { return validChoice(WorkerResponseChoices, string(r)) }

func (r WorkerResponse) Label() string { return labelFor(WorkerResponseChoices, string(r)) }

func validChoice(choices []Choice, code string) bool {
	for _, c := range choices {
		if c.Code == code {
			return true
		}
	}
	return false
}

func labelFor(choices []Choice, code string) string {
	for _, c := range choices {
		if c.Code == code {
			return c.Label
		}
	}
	return code
}

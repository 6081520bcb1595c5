package reservations_service_api

type Passenger struct {
	Name   string `json:"name"`
	Age    int32  `json:"age"`
	Gender string `json:"gender"`
}

type Reservation struct {
	PNR            string       `json:"pnr"`
	UserID         string       `json:"user_id"`
	TrainRunID     int64        `json:"train_run_id"`
	JourneyDate    string       `json:"journey_date"`
	PassengerCount int32        `json:"passenger_count"`
	TotalFarePaise int64        `json:"total_fare_paise"`
	Status         string       `json:"status"`
	Passengers     []*Passenger `json:"passengers"`
	BookedAt       string       `json:"booked_at"`
}

type Cancellation struct {
	ID                string `json:"id"`
	PNR               string `json:"pnr"`
	Reason            string `json:"reason"`
	RefundAmountPaise int64  `json:"refund_amount_paise"`
	RefundStatus      string `json:"refund_status"`
	CancelledBy       string `json:"cancelled_by"`
	CreatedAt         string `json:"created_at"`
}

type TrainRun struct {
	ID             int64  `json:"id"`
	Number         string `json:"number"`
	Name           string `json:"name"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	Class          string `json:"class"`
	AvailableSeats int32  `json:"available_seats"`
	FarePaise      int64  `json:"fare_paise"`
}

type CreateReservationRequest struct {
	TrainRunID  int64        `json:"train_run_id"`
	JourneyDate string       `json:"journey_date"`
	Passengers  []*Passenger `json:"passengers"`
}

type GetReservationRequest struct {
	PNR string `json:"pnr"`
}

type ListReservationsRequest struct{}

type ListReservationsResponse struct {
	Reservations []*Reservation `json:"reservations"`
}

type CancelReservationRequest struct {
	PNR    string `json:"pnr"`
	Reason string `json:"reason"`
}

type PayReservationRequest struct {
	PNR        string `json:"pnr"`
	Method     string `json:"method"`
	CardNumber string `json:"card_number,omitempty"`
	UPIID      string `json:"upi_id,omitempty"`
	BankCode   string `json:"bank_code,omitempty"`
}

type PayReservationResponse struct {
	PaymentStatus string       `json:"payment_status"`
	TransactionID string       `json:"transaction_id"`
	FailureReason string       `json:"failure_reason,omitempty"`
	Reservation   *Reservation `json:"reservation"`
}

type ListTrainRunsRequest struct{}

type ListTrainRunsResponse struct {
	TrainRuns []*TrainRun `json:"train_runs"`
}

package model

// Snapshot is one consistent read of all four collections.
type Snapshot struct {
	Services     []Service     `json:"services"`
	Stylists     []Stylist     `json:"stylists"`
	Customers    []Customer    `json:"customers"`
	Appointments []Appointment `json:"appointments"`
}

func (s Snapshot) Service(id string) (Service, bool) {
	for _, v := range s.Services {
		if v.ID == id {
			return v, true
		}
	}
	return Service{}, false
}

func (s Snapshot) Stylist(id string) (Stylist, bool) {
	for _, v := range s.Stylists {
		if v.ID == id {
			return v, true
		}
	}
	return Stylist{}, false
}

func (s Snapshot) Customer(id string) (Customer, bool) {
	for _, v := range s.Customers {
		if v.ID == id {
			return v, true
		}
	}
	return Customer{}, false
}

func (s Snapshot) Appointment(id string) (Appointment, bool) {
	for _, v := range s.Appointments {
		if v.ID == id {
			return v, true
		}
	}
	return Appointment{}, false
}

// CustomerStats is a customer together with its derived aggregates.
type CustomerStats struct {
	Customer
	Visits     int     `json:"visits"`
	TotalSpent float64 `json:"total_spent"`
}

// Stats derives visit count and lifetime spend for every customer from the
// appointment set, pricing each visit at the referenced service's current
// price. Appointments whose service no longer exists count with price 0.
func Stats(customers []Customer, appointments []Appointment, services []Service) []CustomerStats {
	prices := make(map[string]float64, len(services))
	for _, s := range services {
		prices[s.ID] = s.Price
	}
	type agg struct {
		visits int
		spent  float64
	}
	byCustomer := make(map[string]agg, len(customers))
	for _, a := range appointments {
		cur := byCustomer[a.CustomerID]
		cur.visits++
		cur.spent += prices[a.ServiceID]
		byCustomer[a.CustomerID] = cur
	}

	out := make([]CustomerStats, 0, len(customers))
	for _, c := range customers {
		cur := byCustomer[c.ID]
		out = append(out, CustomerStats{Customer: c, Visits: cur.visits, TotalSpent: cur.spent})
	}
	return out
}

// Collection names one of the record sets held by the store.
type Collection string

const (
	Services     Collection = "services"
	Stylists     Collection = "stylists"
	Customers    Collection = "customers"
	Appointments Collection = "appointments"
)

var Collections = []Collection{Services, Stylists, Customers, Appointments}

func ParseCollection(raw string) (Collection, bool) {
	for _, c := range Collections {
		if string(c) == raw {
			return c, true
		}
	}
	return "", false
}

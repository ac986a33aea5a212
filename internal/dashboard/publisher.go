package dashboard

import (
	"time"

	"github.com/tripdeck/tripdeck/internal/countdown"
	"github.com/tripdeck/tripdeck/internal/syncer"
)

// Publisher turns synchronizer state into dashboard messages. Wire its
// PublishAll as the synchronizers' change callback and its Toast as
// their toaster, then call Run for the countdown tick loop.
type Publisher struct {
	server    *Server
	details   *syncer.Details
	checklist *syncer.Checklist
	budget    *syncer.Budget
	routes    *syncer.Routes

	done chan struct{}
}

// NewPublisher creates a publisher over the given synchronizers.
func NewPublisher(server *Server, details *syncer.Details, checklist *syncer.Checklist, budget *syncer.Budget, routes *syncer.Routes) *Publisher {
	return &Publisher{
		server:    server,
		details:   details,
		checklist: checklist,
		budget:    budget,
		routes:    routes,
		done:      make(chan struct{}),
	}
}

// Snapshot returns the complete current state as one message per
// concern, suitable for a client's connect baseline.
func (p *Publisher) Snapshot() []Message {
	return []Message{
		p.tripMessage(),
		p.checklistMessage(),
		p.budgetMessage(),
		p.routesMessage(),
		p.locationsMessage(),
		p.countdownMessage(time.Now()),
	}
}

// PublishAll broadcasts every concern's current snapshot. Cheap enough
// to run on every change callback.
func (p *Publisher) PublishAll() {
	for _, msg := range p.Snapshot() {
		p.server.Broadcast(msg)
	}
}

// Toast broadcasts a transient notification.
func (p *Publisher) Toast(message string) {
	p.server.Broadcast(NewMessage(MessageTypeToast, ToastData{Message: message}))
}

// Run broadcasts a countdown message every second until Stop. Blocks.
func (p *Publisher) Run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case now := <-ticker.C:
			p.server.Broadcast(p.countdownMessage(now))
		}
	}
}

// Stop ends the countdown tick loop.
func (p *Publisher) Stop() {
	close(p.done)
}

func (p *Publisher) tripMessage() Message {
	t, _ := p.details.Snapshot()
	return NewMessage(MessageTypeTrip, TripData{
		Trip:           t,
		SpentPerPerson: p.budget.SpentPerPerson(t.Participants),
	})
}

func (p *Publisher) checklistMessage() Message {
	items := p.checklist.Items()
	data := ChecklistData{Items: make([]checklistItem, 0, len(items)), Progress: p.checklist.Progress()}
	for _, item := range items {
		data.Items = append(data.Items, checklistItem{ID: item.ID, Text: item.Text, Completed: item.Completed})
	}
	return NewMessage(MessageTypeChecklist, data)
}

func (p *Publisher) budgetMessage() Message {
	expenses := p.budget.Expenses()
	data := BudgetData{Expenses: make([]expenseItem, 0, len(expenses)), TotalSpent: p.budget.TotalSpent()}
	for _, e := range expenses {
		data.Expenses = append(data.Expenses, expenseItem{
			ID: e.ID, Description: e.Description, Amount: e.Amount, Category: e.Category,
		})
	}
	return NewMessage(MessageTypeBudget, data)
}

func (p *Publisher) routesMessage() Message {
	routes := p.routes.RoutesList()
	data := RoutesData{Routes: make([]routeItem, 0, len(routes)), ActiveRouteID: p.routes.ActiveRouteID()}
	for _, rt := range routes {
		data.Routes = append(data.Routes, routeItem{ID: rt.ID, Name: rt.Name})
	}
	return NewMessage(MessageTypeRoutes, data)
}

func (p *Publisher) locationsMessage() Message {
	return NewMessage(MessageTypeLocations, LocationsData{
		RouteID:   p.routes.ActiveRouteID(),
		Locations: p.routes.Locations(),
	})
}

func (p *Publisher) countdownMessage(now time.Time) Message {
	t, _ := p.details.Snapshot()
	start, err := countdown.ParseStart(t.StartDate)
	if err != nil {
		start = now
	}
	left, started := countdown.Until(start, now)
	return NewMessage(MessageTypeCountdown, CountdownData{TimeLeft: left, Started: started})
}

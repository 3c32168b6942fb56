package email

import (
	"fmt"
	"html"
	"strings"

	"cakeshop-notifier/internal/models"
)

const (
	assignmentSubject = "New delivery assigned: order {{orderNumber}}"
	assignmentText    = `Hi {{name}},

Order {{orderNumber}} has been assigned to you.

Customer: {{customerName}}
Phone: {{customerPhone}}
Address: {{address}}
Amount: Rs. {{amount}}

Open your delivery panel to accept it: {{panelUrl}}
`
	assignmentHTML = `<p>Hi {{name}},</p>
<p>Order <strong>{{orderNumber}}</strong> has been assigned to you.</p>
<table>
<tr><td>Customer</td><td>{{customerName}}</td></tr>
<tr><td>Phone</td><td>{{customerPhone}}</td></tr>
<tr><td>Address</td><td>{{address}}</td></tr>
<tr><td>Amount</td><td>Rs. {{amount}}</td></tr>
</table>
<p><a href="{{panelUrl}}">Open delivery panel</a></p>`
)

// Composer renders notification emails.
type Composer struct {
	panelURL string
}

func NewComposer(panelURL string) *Composer {
	return &Composer{panelURL: panelURL}
}

// OrderAssignment renders the message sent to a delivery partner when an
// order is assigned to them.
func (c *Composer) OrderAssignment(actor models.Actor, order models.Order, details *models.OrderDetails) Message {
	data := map[string]interface{}{
		"name":        actor.Name,
		"orderNumber": order.OrderNumber,
		"panelUrl":    c.panelURL,
	}
	if details != nil {
		data["customerName"] = details.CustomerName
		data["customerPhone"] = details.CustomerPhone
		data["address"] = details.Address
		data["amount"] = fmt.Sprintf("%.2f", details.Amount)
	}

	escaped := make(map[string]interface{}, len(data))
	for k, v := range data {
		escaped[k] = html.EscapeString(fmt.Sprintf("%v", v))
	}

	return Message{
		To:      actor.Email,
		Subject: renderTemplate(assignmentSubject, data),
		Text:    renderTemplate(assignmentText, data),
		HTML:    renderTemplate(assignmentHTML, escaped),
	}
}

// renderTemplate replaces {{key}} placeholders and removes any left over.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

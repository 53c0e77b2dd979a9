package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

type Template string

const (
	AppointmentConfirmed Template = "appointment-confirmed"
	AppointmentReminder  Template = "appointment-reminder"
	AppointmentCancelled Template = "appointment-cancelled"
)

// AppointmentNotice is the data every appointment email is rendered from.
type AppointmentNotice struct {
	PatientName       string
	PatientEmail      string
	AppointmentNumber string
	DoctorName        string
	HospitalName      string
	SessionTime       string
	QueuePosition     int
	EstimatedWait     int
	Reason            string
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

const layoutHead = `<p>Dear {{.PatientName}},</p>`
const layoutFoot = `<p><strong>Appointment number:</strong> {{.AppointmentNumber}}</p>
<ul>
  <li><strong>Doctor:</strong> {{.DoctorName}}</li>
  <li><strong>Hospital:</strong> {{.HospitalName}}</li>
  <li><strong>Session:</strong> {{.SessionTime}}</li>
</ul>
<p>Regards,<br>{{.HospitalName}}</p>`

var templates = map[Template]emailTemplate{
	AppointmentConfirmed: {
		subject: "Appointment confirmed: {{number}}",
		body: template.Must(template.New("confirmed").Parse(layoutHead + `
<p>Your appointment is confirmed. You are number <strong>{{.QueuePosition}}</strong> in the queue
{{- if gt .EstimatedWait 0}}, with an estimated wait of about {{.EstimatedWait}} minutes{{end}}.</p>
` + layoutFoot)),
	},
	AppointmentReminder: {
		subject: "Reminder: upcoming appointment {{number}}",
		body: template.Must(template.New("reminder").Parse(layoutHead + `
<p>This is a reminder of your upcoming appointment. Your queue number is <strong>{{.QueuePosition}}</strong>.
Please arrive a little early.</p>
` + layoutFoot)),
	},
	AppointmentCancelled: {
		subject: "Appointment cancelled: {{number}}",
		body: template.Must(template.New("cancelled").Parse(layoutHead + `
<p>Your appointment has been cancelled.{{if .Reason}} Reason: {{.Reason}}.{{end}}</p>
` + layoutFoot)),
	},
}

// Render builds the email for notice using the named template.
func Render(name Template, notice AppointmentNotice) (Message, error) {
	tpl, ok := templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}
	if notice.PatientEmail == "" {
		return Message{}, fmt.Errorf("render %s: patient email is empty", name)
	}
	var body bytes.Buffer
	if err := tpl.body.Execute(&body, notice); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{
		To:      notice.PatientEmail,
		Subject: strings.ReplaceAll(tpl.subject, "{{number}}", notice.AppointmentNumber),
		HTML:    body.String(),
	}, nil
}

package collab

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"prospector/internal/domain"
)

// StepRenderer fills the built-in sequence templates. Replace it with the
// LLM-backed renderer in production; this one keeps local runs and demos
// self-contained.
type StepRenderer struct {
	subjects map[int]*template.Template
	bodies   map[int]*template.Template
}

var stepSubjects = map[int]string{
	1: `Quick question about {{.BusinessName}}`,
	2: `Re: quick question about {{.BusinessName}}`,
	3: `{{.BusinessName}} — a few numbers worth seeing`,
	4: `Should I close your file?`,
	5: `Last note from me`,
}

var stepBodies = map[int]string{
	1: `<p>Hi{{if .OwnerName}} {{.OwnerName}}{{end}},</p>
<p>I ran a quick check on {{if .HasWebsite}}your website{{else}}{{.BusinessName}}'s online presence{{end}} and noticed a few things costing you customers. Worth a short call?</p>
<p><a href="https://prospector.example/report">See the findings</a></p>`,
	2: `<p>Hi{{if .OwnerName}} {{.OwnerName}}{{end}},</p>
<p>Following up on my last note — the issues I flagged are still live. Happy to walk you through them in ten minutes.</p>`,
	3: `<p>Hi{{if .OwnerName}} {{.OwnerName}}{{end}},</p>
<p>Businesses like {{.BusinessName}} that fix these issues typically see measurably more inquiries within a month. The numbers are in the report below.</p>
<p><a href="https://prospector.example/report">Full report</a></p>`,
	4: `<p>Hi{{if .OwnerName}} {{.OwnerName}}{{end}},</p>
<p>I haven't heard back, so I'll assume the timing isn't right. If that changes, my earlier report still applies.</p>`,
	5: `<p>Hi{{if .OwnerName}} {{.OwnerName}}{{end}},</p>
<p>Closing your file today. If you ever want a second pair of eyes on the site, you know where to find me.</p>`,
}

func NewStepRenderer() (*StepRenderer, error) {
	r := &StepRenderer{
		subjects: map[int]*template.Template{},
		bodies:   map[int]*template.Template{},
	}
	for step, text := range stepSubjects {
		t, err := template.New(fmt.Sprintf("subject-%d", step)).Parse(text)
		if err != nil {
			return nil, err
		}
		r.subjects[step] = t
	}
	for step, text := range stepBodies {
		t, err := template.New(fmt.Sprintf("body-%d", step)).Parse(text)
		if err != nil {
			return nil, err
		}
		r.bodies[step] = t
	}
	return r, nil
}

type renderData struct {
	BusinessName string
	OwnerName    string
	HasWebsite   bool
}

func (r *StepRenderer) Render(ctx context.Context, p domain.Prospect, step int) (string, string, error) {
	st, ok := r.subjects[step]
	bt := r.bodies[step]
	if !ok || bt == nil {
		return "", "", fmt.Errorf("no template for step %d", step)
	}
	data := renderData{BusinessName: p.BusinessName, HasWebsite: p.HasWebsite}
	if p.OwnerName != nil {
		data.OwnerName = *p.OwnerName
	}
	var subject, body bytes.Buffer
	if err := st.Execute(&subject, data); err != nil {
		return "", "", err
	}
	if err := bt.Execute(&body, data); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}

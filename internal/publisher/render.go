package publisher

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"pulse/internal/assistant"
	"pulse/internal/domain"
)

var payslipTemplate = template.Must(template.New("payslip").Funcs(template.FuncMap{
	"money": assistant.FormatMoney,
	"date":  func(t time.Time) string { return t.Format(time.DateOnly) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Payslip {{.Payslip.Period}} - {{.Employee.FullName}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; max-width: 40rem; }
td, th { border-bottom: 1px solid #ddd; padding: .4rem .6rem; text-align: left; }
td.amount, th.amount { text-align: right; }
tr.total td { font-weight: bold; border-top: 2px solid #222; }
</style>
</head>
<body>
<h1>Payslip {{.Payslip.Period}}</h1>
<p>
{{.Employee.FullName}} &lt;{{.Employee.Email}}&gt;<br>
{{with .Employee.Department}}{{.}}{{end}}{{with .Employee.Position}} / {{.}}{{end}}
</p>
<table>
<tr><th>Concept</th><th class="amount">Amount</th></tr>
<tr><td>Gross salary</td><td class="amount">{{money .Payslip.GrossAmount .Payslip.Currency}}</td></tr>
{{- range .Payslip.Deductions}}
<tr><td>{{.Name}}</td><td class="amount">-{{money .Amount $.Payslip.Currency}}</td></tr>
{{- end}}
<tr><td>Total deductions</td><td class="amount">-{{money .Payslip.TotalDeductions .Payslip.Currency}}</td></tr>
<tr class="total"><td>Net pay</td><td class="amount">{{money .Payslip.NetAmount .Payslip.Currency}}</td></tr>
</table>
<p>Issued {{date .Payslip.IssuedAt}}. Document {{.Payslip.ID}}.</p>
</body>
</html>
`))

type document struct {
	Payslip  domain.Payslip
	Employee domain.User
}

// renderPayslip writes the HTML statement handed to employees.
func renderPayslip(w io.Writer, p domain.Payslip, employee domain.User) error {
	if err := payslipTemplate.Execute(w, document{Payslip: p, Employee: employee}); err != nil {
		return fmt.Errorf("render payslip %d: %w", p.ID, err)
	}
	return nil
}

package command

// DefaultNavigation returns the built-in navigation table for the campus
// assistant, mapping spoken Spanish phrases to widget routes. Deployments
// normally override these from the config file; the defaults keep a bare
// gateway usable.
func DefaultNavigation() *Table {
	return NewTable("navigation", []Entry{
		{Phrase: "inicio", Action: "/"},
		{Phrase: "preguntas frecuentes", Action: "/faq"},
		{Phrase: "contacto", Action: "/contacto"},
		{Phrase: "tramites", Action: "/tramites"},
		{Phrase: "biblioteca", Action: "/biblioteca"},
		{Phrase: "calendario academico", Action: "/calendario"},
	})
}

// DefaultQuestions returns the built-in canned-question table, mapping
// spoken phrases to localization keys resolved by the i18n bundle.
func DefaultQuestions() *Table {
	return NewTable("questions", []Entry{
		{Phrase: "renovar tne", Action: "question.renew_tne"},
		{Phrase: "horario biblioteca", Action: "question.library_hours"},
		{Phrase: "certificado alumno regular", Action: "question.enrollment_certificate"},
		{Phrase: "fechas de matricula", Action: "question.registration_dates"},
		{Phrase: "beca de alimentacion", Action: "question.meal_grant"},
		{Phrase: "cambio de carrera", Action: "question.program_transfer"},
	})
}

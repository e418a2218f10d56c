package wire

// ExplainInfo summarizes how a query resolves without executing it:
// the tables it touches (as dataSource.schema.table triples) and
// whether it carries a time-travel clause.
type ExplainInfo struct {
	SQL           string   `json:"sql"`
	Tables        []string `json:"tables"`
	HasTimeTravel bool     `json:"hasTimeTravel"`
	Operation     string   `json:"operation"`
}

// Explain validates sql against the catalog and reports its resolved
// tables without running it.
func (s *Server) Explain(sql string) (*ExplainInfo, error) {
	result, err := s.Validator.Validate(sql)
	if err != nil {
		return nil, err
	}
	info := &ExplainInfo{
		SQL:           sql,
		HasTimeTravel: result.Plan.HasTimeTravel,
		Operation:     string(result.Plan.Operation),
	}
	for _, t := range result.Tables {
		info.Tables = append(info.Tables, t.DataSource.ID+"."+t.Schema.Name+"."+t.Table.Name)
	}
	return info, nil
}

// ValidateInfo is the outcome of a validate-only check.
type ValidateInfo struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateQuery runs the same resolution and rule checks as Explain but
// reports the outcome rather than returning an error, since an invalid
// query is an expected client response here rather than a server fault.
func (s *Server) ValidateQuery(sql string) *ValidateInfo {
	if _, err := s.Validator.Validate(sql); err != nil {
		return &ValidateInfo{Valid: false, Error: err.Error()}
	}
	return &ValidateInfo{Valid: true}
}

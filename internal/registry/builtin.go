package registry

// Builtin returns a registry pre-loaded with the export layouts the legacy
// practice-management system is known to emit. Per-site overrides and extra
// record types come from CUE declarations and replace these by name.
func Builtin() *Registry {
	r := New()
	r.Register(PatientSpec())
	r.Register(PatientCompactSpec())
	r.Register(TransactionSpec())
	return r
}

// PatientSpec is the full 68-column patient export. Only the columns that
// carry demographic or contact data are mapped; the rest is billing and
// scheduling noise the remote side has no use for.
func PatientSpec() *FieldSpecSet {
	return &FieldSpecSet{
		Type:         "patient",
		ColumnCount:  68,
		LocalIDField: "local_id",
		Remote: RemoteBinding{
			Resource:        "patients",
			ExternalIDField: "externalId",
			FallbackSearch:  true,
		},
		Fields: []FieldSpec{
			{Name: "date_of_birth", Position: 5, Kind: KindDate, RemoteField: "dateOfBirth"},
			{Name: "cell_phone", Position: 6, Kind: KindPhone, RemoteField: "cellPhone"},
			{Name: "city", Position: 10, Kind: KindString, RemoteField: "city"},
			{Name: "doctor", Position: 16, Kind: KindString},
			{Name: "email", Position: 17, Kind: KindString, RemoteField: "email"},
			{Name: "last_visit_date", Position: 19, Kind: KindDate},
			{Name: "first_name", Position: 21, Kind: KindString, Required: true, RemoteField: "firstName"},
			{Name: "parent_guardian", Position: 23, Kind: KindString},
			{Name: "home_phone", Position: 24, Kind: KindPhone, RemoteField: "homePhone"},
			{Name: "last_name", Position: 27, Kind: KindString, Required: true, RemoteField: "lastName"},
			{Name: "middle_name", Position: 31, Kind: KindString, RemoteField: "middleName"},
			{Name: "occupation", Position: 34, Kind: KindString},
			{Name: "local_id", Position: 36, Kind: KindString, Required: true},
			{Name: "gender", Position: 37, Kind: KindGender, RemoteField: "gender"},
			{Name: "preferred_name", Position: 38, Kind: KindString, RemoteField: "preferredName"},
			{Name: "ssn", Position: 51, Kind: KindString, RemoteField: "ssn"},
			{Name: "state", Position: 53, Kind: KindString, RemoteField: "state"},
			{Name: "street1", Position: 54, Kind: KindString, RemoteField: "street1"},
			{Name: "title", Position: 55, Kind: KindString},
			{Name: "work_phone", Position: 63, Kind: KindPhone, RemoteField: "workPhone"},
			{Name: "postal_code", Position: 65, Kind: KindString, RemoteField: "postalCode"},
		},
	}
}

// PatientCompactSpec is the 14-column patient export variant some offices
// produce. Same canonical fields, different positions.
func PatientCompactSpec() *FieldSpecSet {
	return &FieldSpecSet{
		Type:         "patient_compact",
		ColumnCount:  14,
		LocalIDField: "local_id",
		Remote: RemoteBinding{
			Resource:        "patients",
			ExternalIDField: "externalId",
			FallbackSearch:  true,
		},
		Fields: []FieldSpec{
			{Name: "local_id", Position: 0, Kind: KindString, Required: true},
			{Name: "first_name", Position: 1, Kind: KindString, Required: true, RemoteField: "firstName"},
			{Name: "middle_name", Position: 2, Kind: KindString, RemoteField: "middleName"},
			{Name: "date_of_birth", Position: 3, Kind: KindDate, RemoteField: "dateOfBirth"},
			{Name: "last_name", Position: 4, Kind: KindString, Required: true, RemoteField: "lastName"},
			{Name: "gender", Position: 5, Kind: KindGender, RemoteField: "gender"},
			{Name: "street1", Position: 6, Kind: KindString, RemoteField: "street1"},
			{Name: "street2", Position: 7, Kind: KindString, RemoteField: "street2"},
			{Name: "city", Position: 8, Kind: KindString, RemoteField: "city"},
			{Name: "state", Position: 9, Kind: KindString, RemoteField: "state"},
			{Name: "postal_code", Position: 10, Kind: KindString, RemoteField: "postalCode"},
			{Name: "home_phone", Position: 11, Kind: KindPhone, RemoteField: "homePhone"},
			{Name: "email", Position: 12, Kind: KindString, RemoteField: "email"},
			{Name: "ssn", Position: 13, Kind: KindString, RemoteField: "ssn"},
		},
	}
}

// TransactionSpec is the 38-column transaction export with embedded contact
// lens Rx data, four lens groups: OD/OS primary and OD/OS alternate.
func TransactionSpec() *FieldSpecSet {
	return &FieldSpecSet{
		Type:         "transaction",
		ColumnCount:  38,
		LocalIDField: "local_id",
		Remote: RemoteBinding{
			Resource:        "contact-lens-rx",
			ParentType:      "patient",
			ParentField:     "patient_id",
			ExternalIDField: "external_rx_id",
		},
		Fields: []FieldSpec{
			{Name: "local_id", Position: 0, Kind: KindString, Required: true},
			{Name: "patient_id", Position: 1, Kind: KindString, Required: true},
			{Name: "transaction_date", Position: 2, Kind: KindDate, RemoteField: "rx_date"},
			{Name: "doctor", Position: 3, Kind: KindString},
			{Name: "exam_proc", Position: 4, Kind: KindString},
			{Name: "cl_fitting_proc", Position: 5, Kind: KindString},
			{Name: "expiration_date", Position: 6, Kind: KindDate, RemoteField: "expiration_date"},

			{Name: "od_lens_name", Position: 7, Kind: KindString, RemoteField: "od_product_name"},
			{Name: "od_base_curve", Position: 8, Kind: KindString, RemoteField: "od_base_curve"},
			{Name: "od_diameter", Position: 9, Kind: KindString, RemoteField: "od_diameter"},
			{Name: "od_sphere", Position: 10, Kind: KindString, RemoteField: "od_sphere"},
			{Name: "od_cylinder", Position: 11, Kind: KindString, RemoteField: "od_cylinder"},
			{Name: "od_axis", Position: 12, Kind: KindString, RemoteField: "od_axis"},
			{Name: "od_add", Position: 13, Kind: KindString, RemoteField: "od_add"},
			{Name: "od_quantity", Position: 14, Kind: KindInt},

			{Name: "os_lens_name", Position: 15, Kind: KindString, RemoteField: "os_product_name"},
			{Name: "os_base_curve", Position: 16, Kind: KindString, RemoteField: "os_base_curve"},
			{Name: "os_diameter", Position: 17, Kind: KindString, RemoteField: "os_diameter"},
			{Name: "os_sphere", Position: 18, Kind: KindString, RemoteField: "os_sphere"},
			{Name: "os_cylinder", Position: 19, Kind: KindString, RemoteField: "os_cylinder"},
			{Name: "os_axis", Position: 20, Kind: KindString, RemoteField: "os_axis"},
			{Name: "os_add", Position: 21, Kind: KindString, RemoteField: "os_add"},
			{Name: "os_quantity", Position: 22, Kind: KindInt},

			{Name: "od_alt_lens_name", Position: 23, Kind: KindString, RemoteField: "od_alt_product_name"},
			{Name: "od_alt_base_curve", Position: 24, Kind: KindString, RemoteField: "od_alt_base_curve"},
			{Name: "od_alt_diameter", Position: 25, Kind: KindString, RemoteField: "od_alt_diameter"},
			{Name: "od_alt_sphere", Position: 26, Kind: KindString, RemoteField: "od_alt_sphere"},
			{Name: "od_alt_cylinder", Position: 27, Kind: KindString, RemoteField: "od_alt_cylinder"},
			{Name: "od_alt_axis", Position: 28, Kind: KindString, RemoteField: "od_alt_axis"},
			{Name: "od_alt_add", Position: 29, Kind: KindString, RemoteField: "od_alt_add"},

			{Name: "os_alt_lens_name", Position: 30, Kind: KindString, RemoteField: "os_alt_product_name"},
			{Name: "os_alt_base_curve", Position: 31, Kind: KindString, RemoteField: "os_alt_base_curve"},
			{Name: "os_alt_diameter", Position: 32, Kind: KindString, RemoteField: "os_alt_diameter"},
			{Name: "os_alt_sphere", Position: 33, Kind: KindString, RemoteField: "os_alt_sphere"},
			{Name: "os_alt_cylinder", Position: 34, Kind: KindString, RemoteField: "os_alt_cylinder"},
			{Name: "os_alt_axis", Position: 35, Kind: KindString, RemoteField: "os_alt_axis"},
			{Name: "os_alt_add", Position: 36, Kind: KindString, RemoteField: "os_alt_add"},

			{Name: "notes", Position: 37, Kind: KindString},
		},
	}
}

package erp

import "fmt"

// Built-in connector specs. New ERP support is added here (or by a caller
// before startup) with an explicit Register call.
func init() {
	Register(Spec{
		Name: "netsuite",
		Api: &ApiSpec{
			Method:         "GET",
			PathFor:        func(dataType string) string { return fmt.Sprintf("/services/rest/record/v1/%s", dataType) },
			RecordsField:   "items",
			TokenField:     "nextToken",
			TokenParam:     "pageToken",
			PageSizeParam:  "limit",
			OffsetParam:    "offset",
			WatermarkParam: "modifiedSince",
		},
	})
	Register(Spec{
		Name: "sapbyd",
		Api: &ApiSpec{
			Method:        "GET",
			PathFor:       func(dataType string) string { return fmt.Sprintf("/sap/byd/odata/%s", dataType) },
			RecordsField:  "value",
			PageSizeParam: "$top",
			OffsetParam:   "$skip",
		},
	})
	Register(Spec{
		Name: "dynamics",
		Db: &DbSpec{
			TableFor:      func(dataType string) string { return dataType },
			DefaultFilter: "processed_flag = 0",
			OrderBy:       "modified_at",
		},
	})
	Register(Spec{
		Name: "sageintacct",
		Db: &DbSpec{
			TableFor:      func(dataType string) string { return fmt.Sprintf("v_%s", dataType) },
			DefaultFilter: "export_state = 'pending'",
			OrderBy:       "record_no",
		},
	})
}

package nresults

import (
	"time"

	"github.com/Narodni-repozitar/nr-Nresults/internal/schema"
	"github.com/Narodni-repozitar/nr-Nresults/plugins/nrcommon"
)

// Length limits of the free-text N fields.
const (
	MaxEconomicalParameters = 1024
	MaxTechnicalParameters  = 3000
)

// EarliestCertification is the lower bound of N_dateCertified.
var EarliestCertification = time.Date(1700, 1, 1, 0, 0, 0, 0, time.UTC)

// MetadataSchema is the record schema: the common NR fields plus the fields
// specific to certified results.
func MetadataSchema() *schema.Schema {
	return nrcommon.CommonSchema(
		schema.Def{Name: "N_certifyingAuthority", Field: schema.TaxonomyList{}},
		schema.Def{Name: "N_dateCertified", Field: schema.Date{Min: EarliestCertification, MaxToday: true}},
		schema.Def{Name: "N_economicalParameters", Field: schema.String{MaxLength: MaxEconomicalParameters}},
		schema.Def{Name: "N_technicalParameters", Field: schema.String{MaxLength: MaxTechnicalParameters}},
		schema.Def{Name: "N_internalID", Field: schema.String{}},
		schema.Def{Name: "N_referenceNumber", Field: schema.String{}},
		schema.Def{Name: "N_resultUsage", Field: schema.TaxonomyList{}},
		schema.Def{Name: "N_type", Field: schema.TaxonomyList{MinItems: 1}, Required: true},
	)
}

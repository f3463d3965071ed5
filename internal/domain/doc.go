// Package domain models Ontario public health unit (PHU) case-report data and
// the aggregation that turns it into heatmap weights.
//
// # Data Source
//
// Case reports come from the Ontario "Confirmed positive cases of COVID-19"
// open dataset (conposcovidloc.csv). One row is one case. The columns this
// package reads are:
//
//	Case_Reported_Date        YYYY-MM-DD, the aggregation key
//	Test_Reported_Date        YYYY-MM-DD, used when Case_Reported_Date is blank
//	Reporting_PHU             health unit name, e.g. "Toronto Public Health"
//	Reporting_PHU_Latitude    decimal degrees, WGS-84
//	Reporting_PHU_Longitude   decimal degrees, WGS-84
//
// Every other column is pruned before parsing.
//
// # Aggregation
//
// Dates are compared as raw strings. A malformed date is not an error: it just
// forms its own (usually small) partition.
//
// Each health unit has a single fixed location. The first row that carries
// coordinates for a unit defines them; later rows with different values are
// ignored without validation. Rows with blank coordinates can be filled by a
// [Geocoder] before resolution (see [FillMissingCoordinates]).
//
// The heatmap weight of a unit on a date is the number of case rows for that
// unit on that date. Units without cases on a date are absent from that
// date's table rather than present with a zero count.
package domain

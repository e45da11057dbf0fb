// Package api provides REST clients for external quote endpoints.
//
// Two payload schemas are supported:
//   - Primary: GET {base}/quote?symbol=S returning {c,d,dp,h,l,o,pc,t}
//   - Secondary: GET {base}/query?function=GLOBAL_QUOTE&symbol=S&apikey=K
//     returning a "Global Quote" object with string fields
//
// Both are converted to model.Quote by ToModel. A payload that is empty,
// partial or not numeric is reported as an error rather than converted.
package api

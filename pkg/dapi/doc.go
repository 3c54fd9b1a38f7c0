/*
Package dapi implements the distributed-API request/response correlator
(§4.5): PendingRequestTable plus the execute/process_dapi_res pair that
dispatches a DAPI command over the right link and wakes the originating
caller when the response arrives.
*/
package dapi

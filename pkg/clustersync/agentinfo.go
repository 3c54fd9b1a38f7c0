package clustersync

import (
	"encoding/json"
	"fmt"

	"github.com/wardenhq/warden/pkg/agentdb"
	"github.com/wardenhq/warden/pkg/clustererr"
	"github.com/wardenhq/warden/pkg/types"
)

// ParseAgentInfoPayload decodes the JSON document carried by `syn_a_w_m`
// chunks (§4.4, §6). A malformed document is surfaced as a PayloadDecode
// ClusterError.
func ParseAgentInfoPayload(raw string) (types.AgentInfoPayload, error) {
	var payload types.AgentInfoPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return types.AgentInfoPayload{}, clustererr.PayloadDecode("malformed agent-info JSON", err)
	}
	return payload, nil
}

// SyncAgentInfo implements the per-chunk loop of sync_wazuh_db_info (§4.4):
// issues "<set_data_command> <chunk>" for every chunk, counting a chunk as
// an error (without aborting) if the database's response status is not
// "ok", or if sending itself fails. It never returns an error for
// chunk-level failures; those are reported in the returned result.
func SyncAgentInfo(db agentdb.Client, payload types.AgentInfoPayload) types.AgentInfoResult {
	result := types.AgentInfoResult{ErrorMessages: []string{}}

	for _, chunk := range payload.Chunks {
		res, err := db.SendChunk(payload.SetDataCommand, chunk)
		if err != nil {
			result.ErrorMessages = append(result.ErrorMessages, err.Error())
			continue
		}
		if res.Status != "ok" {
			result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("(%s, %s)", res.Status, res.Detail))
			continue
		}
		result.UpdatedChunks++
	}

	return result
}

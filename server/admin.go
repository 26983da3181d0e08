package server

import (
	"encoding/json"
	"net/http"

	"gameroom/activity"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleGames 玩法目录
// GET /games
func HandleGames(engines *activity.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, engines.Catalog())
	}
}

// HandleAdminRooms 在命令循环中读取全部房间的摘要
// GET /admin/rooms
func (b *Broker) HandleAdminRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var rooms []RoomSummary
	err := b.Do(r.Context(), func(reg *Registry) {
		rooms = make([]RoomSummary, 0, reg.Len())
		for _, room := range reg.Rooms() {
			rooms = append(rooms, room.Summary())
		}
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// HandleMetrics 输出运行指标
// GET /metrics
func (b *Broker) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metrics": b.metrics.Snapshot()})
}

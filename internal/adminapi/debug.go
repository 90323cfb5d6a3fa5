package adminapi

import "net/http"

type partitionSnapshot struct {
	ID           uint32 `json:"id"`
	Offset       uint64 `json:"current_offset"`
	Messages     uint64 `json:"messages_count"`
	SegmentCount int    `json:"segment_count"`
}

type topicSnapshot struct {
	ID              uint32              `json:"id"`
	Name            string              `json:"name"`
	PartitionsCount uint32              `json:"partitions_count"`
	Groups          []uint32            `json:"group_ids"`
	Partitions      []partitionSnapshot `json:"partitions"`
}

type streamSnapshot struct {
	ID     uint32          `json:"id"`
	Name   string          `json:"name"`
	Topics []topicSnapshot `json:"topics"`
}

func (s *Server) handleDebugStreams(w http.ResponseWriter, r *http.Request) {
	if s.system == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "engine not attached"})
		return
	}

	streams := s.system.GetStreams()
	out := make([]streamSnapshot, 0, len(streams))
	for _, st := range streams {
		topics, err := s.system.GetTopics(st.ID)
		if err != nil {
			continue
		}
		ts := make([]topicSnapshot, 0, len(topics))
		for _, tp := range topics {
			ps := make([]partitionSnapshot, 0, tp.PartitionsCount)
			for _, pid := range tp.PartitionIDs() {
				p, err := tp.Partition(pid)
				if err != nil {
					continue
				}
				ps = append(ps, partitionSnapshot{
					ID:           pid,
					Offset:       p.CurrentOffset(),
					Messages:     p.MessagesCount(),
					SegmentCount: p.SegmentCount(),
				})
			}
			ts = append(ts, topicSnapshot{
				ID:              tp.ID,
				Name:            tp.Name,
				PartitionsCount: tp.PartitionsCount,
				Groups:          tp.GroupIDs(),
				Partitions:      ps,
			})
		}
		out = append(out, streamSnapshot{ID: st.ID, Name: st.Name, Topics: ts})
	}

	writeJSON(w, http.StatusOK, out)
}

type clientSnapshot struct {
	ID          uint32 `json:"id"`
	Address     string `json:"address"`
	Memberships int    `json:"memberships"`
}

func (s *Server) handleDebugClients(w http.ResponseWriter, r *http.Request) {
	if s.system == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "engine not attached"})
		return
	}

	clients := s.system.GetClients()
	out := make([]clientSnapshot, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientSnapshot{
			ID:          c.ID,
			Address:     c.Address,
			Memberships: len(c.Memberships()),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

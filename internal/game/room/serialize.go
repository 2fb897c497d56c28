package room

import (
	"github.com/palemoky/sabotage-station/internal/server/storage"
)

// toRoomData 将房间转换为可镜像的 RoomData，不包含身份信息
func (r *Room) toRoomData() *storage.RoomData {
	data := &storage.RoomData{
		Code:         r.Code,
		Phase:        string(r.phase),
		HostID:       r.hostID,
		Round:        r.round,
		TaskProgress: r.taskProgress,
		Players:      make([]storage.PlayerData, 0, len(r.order)),
		PlayerOrder:  append([]string(nil), r.order...),
		CreatedAt:    r.createdAt.Unix(),
		UpdatedAt:    r.now().Unix(),
	}
	for _, id := range r.order {
		p := r.players[id]
		data.Players = append(data.Players, storage.PlayerData{
			ID:     p.ID,
			Name:   p.Name,
			Avatar: p.Avatar,
			Alive:  p.Alive,
			Online: p.Online,
		})
	}
	return data
}

// Package role 负责秘密身份分配
package role

import (
	"math/rand/v2"

	"github.com/palemoky/sabotage-station/internal/apperrors"
)

// Role 玩家身份
type Role string

const (
	Crew     Role = "crew"
	Saboteur Role = "saboteur"
)

// smallRoomLimit 人数不超过该值时只有 1 名破坏者
const smallRoomLimit = 5

// ErrEmptyRoom 没有参与者时无法分配身份
var ErrEmptyRoom = apperrors.ErrEmptyRoom

// Assignment 身份分配结果
type Assignment struct {
	Roles     map[string]Role
	Saboteurs []string
}

// RoleOf 返回指定玩家的身份
func (a Assignment) RoleOf(id string) Role {
	return a.Roles[id]
}

// IsSaboteur 判断指定玩家是否为破坏者
func (a Assignment) IsSaboteur(id string) bool {
	return a.Roles[id] == Saboteur
}

// SaboteurCount 根据人数计算破坏者数量
func SaboteurCount(n int) int {
	if n <= smallRoomLimit {
		return 1
	}
	return 2
}

// Assign 使用全局随机源分配身份
func Assign(ids []string) (Assignment, error) {
	return assign(ids, rand.IntN)
}

// AssignWith 使用指定随机源分配身份（测试中可注入固定种子）
func AssignWith(r *rand.Rand, ids []string) (Assignment, error) {
	return assign(ids, r.IntN)
}

// assign Fisher-Yates 洗牌后取前 k 个为破坏者，不修改输入
func assign(ids []string, intN func(int) int) (Assignment, error) {
	if len(ids) == 0 {
		return Assignment{}, ErrEmptyRoom
	}

	shuffled := make([]string, len(ids))
	copy(shuffled, ids)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := intN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	k := min(SaboteurCount(len(shuffled)), len(shuffled))
	a := Assignment{
		Roles:     make(map[string]Role, len(shuffled)),
		Saboteurs: append([]string(nil), shuffled[:k]...),
	}
	for i, id := range shuffled {
		if i < k {
			a.Roles[id] = Saboteur
		} else {
			a.Roles[id] = Crew
		}
	}
	return a, nil
}

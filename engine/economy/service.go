package economy

import (
	"context"
	"errors"
	"time"

	"github.com/huddlelabs/huddle/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrItemUnavailable means the item is archived, inactive, or not in
	// the member's community.
	ErrItemUnavailable = errors.New("item unavailable")
	// ErrInsufficientFunds means the member's XP does not cover the cost.
	ErrInsufficientFunds = errors.New("insufficient xp")
	// ErrAlreadyUsed means the inventory entry was already activated.
	ErrAlreadyUsed = errors.New("item already used")
	// ErrNotOwned means the member never purchased the item.
	ErrNotOwned = errors.New("item not owned")
	// ErrNotActivatable means the item type has no activation semantics
	// (cosmetics are equipped, not activated).
	ErrNotActivatable = errors.New("item cannot be activated")
	// ErrNotCosmetic means the item occupies no equip slot.
	ErrNotCosmetic = errors.New("item is not a cosmetic")
	// ErrEntryNotFound means the inventory entry does not exist or belongs
	// to someone else.
	ErrEntryNotFound = errors.New("inventory entry not found")
	// ErrMemberNotFound means the member row does not exist.
	ErrMemberNotFound = errors.New("member not found")
)

// ActivationResult describes what an activation did.
type ActivationResult struct {
	// Effect is set for TIMED_EFFECT items.
	Effect *model.ActiveEffect `json:"effect,omitempty"`
	// FreezesGranted is set for INSTANT items.
	FreezesGranted int `json:"freezes_granted,omitempty"`
}

// OwnedItem is one store item with the member's holdings, grouped for
// display; every unit is still a separate row of spend underneath.
type OwnedItem struct {
	Item     model.StoreItem        `json:"item"`
	Entries  []model.InventoryEntry `json:"entries"`
	Unused   int                    `json:"unused"`
	Quantity int                    `json:"quantity"`
}

// Service spends XP on store items and manages the resulting inventory:
// activations of consumables and cosmetic equips.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates an economy Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Purchase debits the item's cost and creates an inventory entry in one
// transaction. The debit is a conditional update ("xp >= cost" in the WHERE
// clause), so two concurrent purchases against a balance that covers only
// one cannot both succeed.
func (svc *Service) Purchase(ctx context.Context, memberID, itemID int64) (*model.InventoryEntry, error) {
	var entry *model.InventoryEntry
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.Member
		if err := tx.Where("id = ?", memberID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}

		var it model.StoreItem
		err := tx.Where("id = ? AND community_id = ?", itemID, m.CommunityID).First(&it).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemUnavailable
			}
			return err
		}
		if !it.IsActive || it.IsArchived {
			return ErrItemUnavailable
		}

		res := tx.Model(&model.Member{}).
			Where("id = ? AND xp >= ?", memberID, it.Cost).
			Updates(map[string]interface{}{
				"xp":      gorm.Expr("xp - ?", it.Cost),
				"version": gorm.Expr("version + ?", 1),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientFunds
		}

		entry = &model.InventoryEntry{MemberID: memberID, ItemID: it.ID}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("item purchased",
		zap.Int64("member_id", memberID),
		zap.Int64("item_id", itemID))
	return entry, nil
}

// Activate consumes one inventory entry. Only INSTANT and TIMED_EFFECT
// items activate; the activated flag's false→true conditional update makes
// each entry single-use even under concurrent attempts.
func (svc *Service) Activate(ctx context.Context, memberID, entryID int64) (*ActivationResult, error) {
	now := time.Now().UTC()
	var result *ActivationResult
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry model.InventoryEntry
		err := tx.Where("id = ? AND member_id = ?", entryID, memberID).First(&entry).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return err
		}

		var it model.StoreItem
		if err := tx.Where("id = ?", entry.ItemID).First(&it).Error; err != nil {
			return err
		}
		payload, err := ResolvePayload(&it)
		if err != nil {
			return err
		}

		res := tx.Model(&model.InventoryEntry{}).
			Where("id = ? AND activated = ?", entry.ID, false).
			Updates(map[string]interface{}{
				"activated":    true,
				"activated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}

		switch p := payload.(type) {
		case TimedPayload:
			if res.RowsAffected == 0 {
				return ErrAlreadyUsed
			}
			eff := &model.ActiveEffect{
				MemberID:  memberID,
				ItemID:    it.ID,
				Modifier:  p.Modifier,
				ExpiresAt: now.Add(p.Duration),
			}
			if err := tx.Create(eff).Error; err != nil {
				return err
			}
			result = &ActivationResult{Effect: eff}
			return nil
		case InstantPayload:
			if res.RowsAffected == 0 {
				return ErrAlreadyUsed
			}
			// Bump the version too: the ledger commits an absolute
			// streak_freezes value under a version CAS, so a freeze grant
			// that leaves version unchanged could be silently overwritten
			// by a ledger transaction holding a stale member snapshot.
			upd := tx.Model(&model.Member{}).
				Where("id = ?", memberID).
				Updates(map[string]interface{}{
					"streak_freezes": gorm.Expr("streak_freezes + ?", p.FreezeGrant),
					"version":        gorm.Expr("version + ?", 1),
				})
			if upd.Error != nil {
				return upd.Error
			}
			result = &ActivationResult{FreezesGranted: p.FreezeGrant}
			return nil
		default:
			return ErrNotActivatable
		}
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("item activated",
		zap.Int64("member_id", memberID),
		zap.Int64("entry_id", entryID))
	return result, nil
}

// Equip places an owned cosmetic into its slot, silently replacing whatever
// was there. Equipping never consumes the entry; once owned, a cosmetic is
// re-equippable forever.
func (svc *Service) Equip(ctx context.Context, memberID, itemID int64) (Slot, error) {
	var it model.StoreItem
	err := svc.db.WithContext(ctx).Where("id = ?", itemID).First(&it).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrItemUnavailable
		}
		return "", err
	}
	payload, err := ResolvePayload(&it)
	if err != nil {
		return "", err
	}
	cos, ok := payload.(CosmeticPayload)
	if !ok {
		return "", ErrNotCosmetic
	}

	var owned int64
	err = svc.db.WithContext(ctx).Model(&model.InventoryEntry{}).
		Where("member_id = ? AND item_id = ?", memberID, itemID).
		Count(&owned).Error
	if err != nil {
		return "", err
	}
	if owned == 0 {
		return "", ErrNotOwned
	}

	col, _ := cos.Slot.Column()
	res := svc.db.WithContext(ctx).Model(&model.Member{}).
		Where("id = ?", memberID).
		Update(col, cos.Value)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", ErrMemberNotFound
	}
	return cos.Slot, nil
}

// Unequip clears the given slot. Clearing an empty slot is a no-op success.
func (svc *Service) Unequip(ctx context.Context, memberID int64, slot Slot) error {
	col, ok := slot.Column()
	if !ok {
		return ErrNotCosmetic
	}
	res := svc.db.WithContext(ctx).Model(&model.Member{}).
		Where("id = ?", memberID).
		Update(col, "")
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// Inventory returns the member's holdings grouped by item.
func (svc *Service) Inventory(ctx context.Context, memberID int64) ([]OwnedItem, error) {
	var entries []model.InventoryEntry
	err := svc.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("purchased_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	itemIDs := make([]int64, 0, len(entries))
	seen := map[int64]bool{}
	for _, e := range entries {
		if !seen[e.ItemID] {
			seen[e.ItemID] = true
			itemIDs = append(itemIDs, e.ItemID)
		}
	}
	var items []model.StoreItem
	if err := svc.db.WithContext(ctx).Where("id IN ?", itemIDs).Find(&items).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]model.StoreItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	grouped := make(map[int64]*OwnedItem)
	var order []int64
	for _, e := range entries {
		g, ok := grouped[e.ItemID]
		if !ok {
			it := byID[e.ItemID]
			g = &OwnedItem{Item: it}
			grouped[e.ItemID] = g
			order = append(order, e.ItemID)
		}
		g.Entries = append(g.Entries, e)
		g.Quantity++
		if !e.Activated {
			g.Unused++
		}
	}
	out := make([]OwnedItem, 0, len(order))
	for _, id := range order {
		out = append(out, *grouped[id])
	}
	return out, nil
}

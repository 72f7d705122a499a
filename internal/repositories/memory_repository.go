package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bankingservice/internal/models"
	"bankingservice/internal/money"
)

// MemoryClientRepository - то же хранилище в памяти под одним мьютексом.
// Используется в тестах и при запуске без DSN базы.
type MemoryClientRepository struct {
	mu      sync.Mutex
	nextID  int64
	clients map[int64]*models.Client
}

var _ ClientRepository = (*MemoryClientRepository)(nil)

func NewMemoryClientRepository() *MemoryClientRepository {
	return &MemoryClientRepository{
		nextID:  1,
		clients: make(map[int64]*models.Client),
	}
}

func cloneClient(c *models.Client) *models.Client {
	cp := *c
	if c.Patronymic != nil {
		s := *c.Patronymic
		cp.Patronymic = &s
	}
	if c.DateOfBirth != nil {
		d := *c.DateOfBirth
		cp.DateOfBirth = &d
	}
	if c.PhoneAdd != nil {
		s := *c.PhoneAdd
		cp.PhoneAdd = &s
	}
	if c.EmailAdd != nil {
		s := *c.EmailAdd
		cp.EmailAdd = &s
	}
	return &cp
}

func (r *MemoryClientRepository) loginTaken(login string) bool {
	for _, c := range r.clients {
		if c.Login == login {
			return true
		}
	}
	return false
}

func (r *MemoryClientRepository) emailTaken(email string) bool {
	for _, c := range r.clients {
		if c.EmailMain == email || (c.EmailAdd != nil && *c.EmailAdd == email) {
			return true
		}
	}
	return false
}

func (r *MemoryClientRepository) phoneTaken(phone string) bool {
	for _, c := range r.clients {
		if c.PhoneMain == phone || (c.PhoneAdd != nil && *c.PhoneAdd == phone) {
			return true
		}
	}
	return false
}

func (r *MemoryClientRepository) Create(_ context.Context, client *models.Client) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loginTaken(client.Login) {
		return 0, &ConflictError{Field: FieldLogin}
	}
	if r.emailTaken(client.EmailMain) {
		return 0, &ConflictError{Field: FieldEmailMain}
	}
	if r.phoneTaken(client.PhoneMain) {
		return 0, &ConflictError{Field: FieldPhoneMain}
	}
	if client.EmailAdd != nil && (r.emailTaken(*client.EmailAdd) || *client.EmailAdd == client.EmailMain) {
		return 0, &ConflictError{Field: FieldEmailAdd}
	}
	if client.PhoneAdd != nil && (r.phoneTaken(*client.PhoneAdd) || *client.PhoneAdd == client.PhoneMain) {
		return 0, &ConflictError{Field: FieldPhoneAdd}
	}

	id := r.nextID
	r.nextID++
	client.ID = id
	r.clients[id] = cloneClient(client)
	return id, nil
}

func (r *MemoryClientRepository) getBy(match func(*models.Client) bool) (*models.Client, error) {
	for _, c := range r.clients {
		if match(c) {
			return cloneClient(c), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryClientRepository) GetByID(_ context.Context, id int64) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneClient(c), nil
}

func (r *MemoryClientRepository) GetByLogin(_ context.Context, login string) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getBy(func(c *models.Client) bool { return c.Login == login })
}

func (r *MemoryClientRepository) GetByEmailMain(_ context.Context, email string) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getBy(func(c *models.Client) bool { return c.EmailMain == email })
}

func (r *MemoryClientRepository) GetByPhoneEither(_ context.Context, phone string) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getBy(func(c *models.Client) bool {
		return c.PhoneMain == phone || (c.PhoneAdd != nil && *c.PhoneAdd == phone)
	})
}

// sortedClients возвращает срез в порядке id - как ORDER BY id в SQL.
func (r *MemoryClientRepository) sortedClients() []*models.Client {
	res := make([]*models.Client, 0, len(r.clients))
	for _, c := range r.clients {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func paginate(list []*models.Client, limit, offset int) []*models.Client {
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit < len(list) {
		list = list[:limit]
	}
	out := make([]*models.Client, 0, len(list))
	for _, c := range list {
		out = append(out, cloneClient(c))
	}
	return out
}

func (r *MemoryClientRepository) FindByBirthdateAfter(_ context.Context, after time.Time, limit, offset int) ([]*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.Client
	for _, c := range r.sortedClients() {
		if c.DateOfBirth != nil && c.DateOfBirth.After(after) {
			matched = append(matched, c)
		}
	}
	return paginate(matched, limit, offset), nil
}

// likeMatch - LIKE без экранирования: % и _ как в SQL, регистр не учитывается.
func likeMatch(pattern, s string) bool {
	pattern = strings.ToLower(pattern)
	s = strings.ToLower(s)
	var match func(p, v string) bool
	match = func(p, v string) bool {
		for len(p) > 0 {
			switch p[0] {
			case '%':
				for i := 0; i <= len(v); i++ {
					if match(p[1:], v[i:]) {
						return true
					}
				}
				return false
			case '_':
				if len(v) == 0 {
					return false
				}
				p, v = p[1:], v[1:]
			default:
				if len(v) == 0 || p[0] != v[0] {
					return false
				}
				p, v = p[1:], v[1:]
			}
		}
		return len(v) == 0
	}
	return match(pattern, s)
}

func (r *MemoryClientRepository) FindByFIO(_ context.Context, name, surname, patronymic string, limit, offset int) ([]*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.Client
	for _, c := range r.sortedClients() {
		if !likeMatch(name, c.Name) || !likeMatch(surname, c.Surname) {
			continue
		}
		if patronymic != "" {
			p := ""
			if c.Patronymic != nil {
				p = *c.Patronymic
			}
			if !likeMatch(patronymic, p) {
				continue
			}
		}
		matched = append(matched, c)
	}
	return paginate(matched, limit, offset), nil
}

func (r *MemoryClientRepository) ChangeMainPhone(_ context.Context, id int64, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return ErrNotFound
	}
	if r.phoneTaken(phone) {
		return &ConflictError{Field: FieldPhoneMain}
	}
	c.PhoneMain = phone
	return nil
}

func (r *MemoryClientRepository) ChangeMainEmail(_ context.Context, id int64, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return ErrNotFound
	}
	if r.emailTaken(email) {
		return &ConflictError{Field: FieldEmailMain}
	}
	c.EmailMain = email
	return nil
}

func (r *MemoryClientRepository) SetAdditionalPhone(_ context.Context, id int64, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return ErrNotFound
	}
	if c.PhoneAdd != nil && *c.PhoneAdd == phone {
		return nil // уже стоит это значение
	}
	if r.phoneTaken(phone) {
		return &ConflictError{Field: FieldPhoneAdd}
	}
	c.PhoneAdd = &phone
	return nil
}

func (r *MemoryClientRepository) SetAdditionalEmail(_ context.Context, id int64, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return ErrNotFound
	}
	if c.EmailAdd != nil && *c.EmailAdd == email {
		return nil
	}
	if r.emailTaken(email) {
		return &ConflictError{Field: FieldEmailAdd}
	}
	c.EmailAdd = &email
	return nil
}

func (r *MemoryClientRepository) ClearAdditionalPhone(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return ErrNotFound
	}
	c.PhoneAdd = nil
	return nil
}

func (r *MemoryClientRepository) ClearAdditionalEmail(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return ErrNotFound
	}
	c.EmailAdd = nil
	return nil
}

func (r *MemoryClientRepository) Transfer(_ context.Context, fromID, toID int64, amount money.Amount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	from, okFrom := r.clients[fromID]
	to, okTo := r.clients[toID]
	if !okFrom || !okTo {
		return ErrNotFound
	}
	if from.Funds < amount {
		return ErrInsufficientFunds
	}
	from.Funds -= amount
	to.Funds += amount
	return nil
}

func (r *MemoryClientRepository) AccrueBalance(_ context.Context, id int64, rate, capFactor int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return ErrNotFound
	}
	maxFunds := c.InitialFunds.MulFactor(capFactor)
	if c.Funds > maxFunds {
		return nil
	}
	next := c.Funds.MulFactor(rate)
	if next > maxFunds {
		next = maxFunds
	}
	c.Funds = next
	return nil
}

func (r *MemoryClientRepository) ListIDs(_ context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

/*
Package sqlite provides the SQLite-backed implementation of every store
interface in the kinder package.

PURPOSE:
  One connection backs all entity clusters. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  kinder.RosterStore      Classes, students, staff users
  kinder.MenuStore        Menu templates and dish assignments
  kinder.DishStore        Dishes, ingredients, composition
  kinder.AttendanceStore  Daily attendance records
  kinder.TicketStore      Meal tickets
  kinder.InvoiceStore     Tuition invoices
  kinder.LeaveStore       Staff leave requests

INVARIANT ENFORCEMENT:
  Uniqueness invariants are encoded as unique indexes, so they hold even
  against concurrent callers:
  - idx_attendance_student_date:  one record per (student, date)
  - idx_tickets_triple:           one ticket per (student, menu, date)
  - idx_invoices_student_period:  one invoice per (student, period, kind)
  A violated index surfaces as kinder.ConflictError.

  Leave overlap cannot be a unique index; the workflow does a counted
  check-then-insert, and the store's writer mutex serializes the pair.

DECIMALS AND DATES:
  Money and calorie values are stored as TEXT via decimal.String() to
  avoid float drift. Dates are TEXT in 2006-01-02 form, periods 2006-01;
  lexical order equals chronological order, so range queries use plain
  string comparison.

WAL MODE:
  SQLite is opened with WAL and foreign keys on. A sync.RWMutex guards
  the single writer; with PostgreSQL the database's own concurrency
  control would take over.

USAGE:
  store, err := sqlite.New("./data/kinder.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - kinder/store.go: Interface definitions and error contracts
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/brightsprout/kinder-engine/kinder"
)

// Store implements all kinder store interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Compile-time interface checks.
var (
	_ kinder.RosterStore     = (*Store)(nil)
	_ kinder.MenuStore       = (*Store)(nil)
	_ kinder.DishStore       = (*Store)(nil)
	_ kinder.AttendanceStore = (*Store)(nil)
	_ kinder.TicketStore     = (*Store)(nil)
	_ kinder.InvoiceStore    = (*Store)(nil)
	_ kinder.LeaveStore      = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Roster
	CREATE TABLE IF NOT EXISTS classes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		capacity INTEGER NOT NULL DEFAULT 0,
		tuition_fee TEXT NOT NULL DEFAULT '0',
		meal_fee TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL REFERENCES classes(id),
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_students_class ON students(class_id);

	CREATE TABLE IF NOT EXISTS staff_users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	-- Menu catalog
	CREATE TABLE IF NOT EXISTS menus (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		day_of_week INTEGER NOT NULL,
		meal_type TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_menus_weekday ON menus(day_of_week);

	CREATE TABLE IF NOT EXISTS dishes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		total_calories TEXT NOT NULL DEFAULT '0',
		total_cost TEXT NOT NULL DEFAULT '0',
		selling_price TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ingredients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		calories_per_100g TEXT NOT NULL DEFAULT '0',
		unit_price TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dish_ingredients (
		dish_id TEXT NOT NULL REFERENCES dishes(id),
		ingredient_id TEXT NOT NULL REFERENCES ingredients(id),
		quantity_grams TEXT NOT NULL,
		PRIMARY KEY (dish_id, ingredient_id)
	);

	CREATE TABLE IF NOT EXISTS menu_dishes (
		menu_id TEXT NOT NULL REFERENCES menus(id),
		dish_id TEXT NOT NULL REFERENCES dishes(id),
		PRIMARY KEY (menu_id, dish_id)
	);

	-- Attendance
	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		class_id TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		excused_absence INTEGER NOT NULL DEFAULT 0,
		daily_meal_refund TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one attendance record per student per day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_student_date
		ON attendance(student_id, date);
	CREATE INDEX IF NOT EXISTS idx_attendance_class_date
		ON attendance(class_id, date);
	CREATE INDEX IF NOT EXISTS idx_attendance_excused
		ON attendance(student_id, excused_absence, date);

	-- Meal tickets
	CREATE TABLE IF NOT EXISTS meal_tickets (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		menu_id TEXT NOT NULL,
		date TEXT NOT NULL,
		consumed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one ticket per (student, menu, date)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_triple
		ON meal_tickets(student_id, menu_id, date);
	CREATE INDEX IF NOT EXISTS idx_tickets_student_date
		ON meal_tickets(student_id, date);

	-- Invoices
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		period TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		base_tuition TEXT NOT NULL DEFAULT '0',
		meal_refund_applied TEXT NOT NULL DEFAULT '0',
		carried_balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one invoice per (student, period, kind)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_student_period
		ON invoices(student_id, period, kind);
	CREATE INDEX IF NOT EXISTS idx_invoices_period ON invoices(period);

	-- Leave requests
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		approver_id TEXT,
		decided_at TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leave_user_status
		ON leave_requests(user_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROSTER STORE (kinder.RosterStore interface)
// =============================================================================

// SaveClass inserts or updates a class.
func (s *Store) SaveClass(ctx context.Context, c kinder.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO classes (id, name, capacity, tuition_fee, meal_fee, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			capacity = excluded.capacity,
			tuition_fee = excluded.tuition_fee,
			meal_fee = excluded.meal_fee
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Capacity, c.TuitionFee.String(), c.MealFee.String(),
		timestamp(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save class: %w", err)
	}
	return nil
}

// GetClass retrieves a class by id. Returns (nil, nil) when absent.
func (s *Store) GetClass(ctx context.Context, id kinder.ClassID) (*kinder.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, capacity, tuition_fee, meal_fee, created_at FROM classes WHERE id = ?", id)
	return scanClass(row)
}

// ListClasses returns all classes ordered by name.
func (s *Store) ListClasses(ctx context.Context) ([]kinder.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, capacity, tuition_fee, meal_fee, created_at FROM classes ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()

	var classes []kinder.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, *c)
	}
	return classes, rows.Err()
}

func scanClass(row scanner) (*kinder.Class, error) {
	var (
		c                        kinder.Class
		tuition, meal, createdAt string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Capacity, &tuition, &meal, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan class: %w", err)
	}
	c.TuitionFee = mustDecimal(tuition)
	c.MealFee = mustDecimal(meal)
	c.CreatedAt = parseTimestamp(createdAt)
	return &c, nil
}

// SaveStudent inserts or updates a student.
func (s *Store) SaveStudent(ctx context.Context, st kinder.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO students (id, class_id, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			class_id = excluded.class_id,
			name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, st.ID, st.ClassID, st.Name, timestamp(st.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save student: %w", err)
	}
	return nil
}

// GetStudent retrieves a student by id. Returns (nil, nil) when absent.
func (s *Store) GetStudent(ctx context.Context, id kinder.StudentID) (*kinder.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		st        kinder.Student
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, class_id, name, created_at FROM students WHERE id = ?", id,
	).Scan(&st.ID, &st.ClassID, &st.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	st.CreatedAt = parseTimestamp(createdAt)
	return &st, nil
}

// ListStudentsInClass returns a class's students ordered by name.
func (s *Store) ListStudentsInClass(ctx context.Context, classID kinder.ClassID) ([]kinder.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, class_id, name, created_at FROM students WHERE class_id = ? ORDER BY name", classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []kinder.Student
	for rows.Next() {
		var (
			st        kinder.Student
			createdAt string
		)
		if err := rows.Scan(&st.ID, &st.ClassID, &st.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		st.CreatedAt = parseTimestamp(createdAt)
		students = append(students, st)
	}
	return students, rows.Err()
}

// SaveStaffUser inserts or updates a staff user.
func (s *Store) SaveStaffUser(ctx context.Context, u kinder.StaffUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO staff_users (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, u.ID, u.Name)
	if err != nil {
		return fmt.Errorf("failed to save staff user: %w", err)
	}
	return nil
}

// GetStaffUser retrieves a staff user by id. Returns (nil, nil) when absent.
func (s *Store) GetStaffUser(ctx context.Context, id kinder.UserID) (*kinder.StaffUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u kinder.StaffUser
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name FROM staff_users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff user: %w", err)
	}
	return &u, nil
}

// =============================================================================
// MENU STORE (kinder.MenuStore interface)
// =============================================================================

// SaveMenu inserts or updates a menu template.
func (s *Store) SaveMenu(ctx context.Context, m kinder.Menu) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO menus (id, name, day_of_week, meal_type, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			day_of_week = excluded.day_of_week,
			meal_type = excluded.meal_type
	`
	_, err := s.db.ExecContext(ctx, query, m.ID, m.Name, int(m.DayOfWeek), m.MealType, timestamp(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save menu: %w", err)
	}
	return nil
}

// GetMenu retrieves a menu by id. Returns (nil, nil) when absent.
func (s *Store) GetMenu(ctx context.Context, id kinder.MenuID) (*kinder.Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, day_of_week, meal_type, created_at FROM menus WHERE id = ?", id)
	return scanMenu(row)
}

// ListMenus returns all menu templates.
func (s *Store) ListMenus(ctx context.Context) ([]kinder.Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryMenus(ctx,
		"SELECT id, name, day_of_week, meal_type, created_at FROM menus ORDER BY day_of_week, meal_type")
}

// ListMenusByWeekday returns menu templates for one day of the week.
func (s *Store) ListMenusByWeekday(ctx context.Context, weekday time.Weekday) ([]kinder.Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryMenus(ctx,
		"SELECT id, name, day_of_week, meal_type, created_at FROM menus WHERE day_of_week = ? ORDER BY meal_type",
		int(weekday))
}

func (s *Store) queryMenus(ctx context.Context, query string, args ...any) ([]kinder.Menu, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query menus: %w", err)
	}
	defer rows.Close()

	var menus []kinder.Menu
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, err
		}
		menus = append(menus, *m)
	}
	return menus, rows.Err()
}

func scanMenu(row scanner) (*kinder.Menu, error) {
	var (
		m         kinder.Menu
		weekday   int
		createdAt string
	)
	err := row.Scan(&m.ID, &m.Name, &weekday, &m.MealType, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan menu: %w", err)
	}
	m.DayOfWeek = time.Weekday(weekday)
	m.CreatedAt = parseTimestamp(createdAt)
	return &m, nil
}

// AssignDish links a dish to a menu. Idempotent.
func (s *Store) AssignDish(ctx context.Context, menuID kinder.MenuID, dishID kinder.DishID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO menu_dishes (menu_id, dish_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		menuID, dishID)
	if err != nil {
		return fmt.Errorf("failed to assign dish: %w", err)
	}
	return nil
}

// ListMenuDishes returns the dish ids assigned to a menu.
func (s *Store) ListMenuDishes(ctx context.Context, menuID kinder.MenuID) ([]kinder.DishID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT dish_id FROM menu_dishes WHERE menu_id = ?", menuID)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu dishes: %w", err)
	}
	defer rows.Close()

	var ids []kinder.DishID
	for rows.Next() {
		var id kinder.DishID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan menu dish: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// DISH STORE (kinder.DishStore interface)
// =============================================================================

// SaveDish inserts or updates a dish. Derived totals are only written on
// first insert; UpdateDishTotals owns them afterwards.
func (s *Store) SaveDish(ctx context.Context, d kinder.Dish) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO dishes (id, name, category, total_calories, total_cost, selling_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			selling_price = excluded.selling_price
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.Name, d.Category,
		d.TotalCalories.String(), d.TotalCost.String(), d.SellingPrice.String(),
		timestamp(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save dish: %w", err)
	}
	return nil
}

// GetDish retrieves a dish by id. Returns (nil, nil) when absent.
func (s *Store) GetDish(ctx context.Context, id kinder.DishID) (*kinder.Dish, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, category, total_calories, total_cost, selling_price, created_at FROM dishes WHERE id = ?", id)
	return scanDish(row)
}

// ListDishes returns all dishes ordered by name.
func (s *Store) ListDishes(ctx context.Context) ([]kinder.Dish, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, category, total_calories, total_cost, selling_price, created_at FROM dishes ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list dishes: %w", err)
	}
	defer rows.Close()

	var dishes []kinder.Dish
	for rows.Next() {
		d, err := scanDish(rows)
		if err != nil {
			return nil, err
		}
		dishes = append(dishes, *d)
	}
	return dishes, rows.Err()
}

func scanDish(row scanner) (*kinder.Dish, error) {
	var (
		d                                kinder.Dish
		category                         sql.NullString
		calories, cost, price, createdAt string
	)
	err := row.Scan(&d.ID, &d.Name, &category, &calories, &cost, &price, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dish: %w", err)
	}
	d.Category = category.String
	d.TotalCalories = mustDecimal(calories)
	d.TotalCost = mustDecimal(cost)
	d.SellingPrice = mustDecimal(price)
	d.CreatedAt = parseTimestamp(createdAt)
	return &d, nil
}

// UpdateDishTotals persists recomputed derived totals.
func (s *Store) UpdateDishTotals(ctx context.Context, id kinder.DishID, totalCalories, totalCost decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE dishes SET total_calories = ?, total_cost = ? WHERE id = ?",
		totalCalories.String(), totalCost.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update dish totals: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &kinder.NotFoundError{Entity: "dish", ID: string(id)}
	}
	return nil
}

// SaveIngredient inserts or updates an ingredient.
func (s *Store) SaveIngredient(ctx context.Context, i kinder.Ingredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO ingredients (id, name, calories_per_100g, unit_price, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			calories_per_100g = excluded.calories_per_100g,
			unit_price = excluded.unit_price
	`
	_, err := s.db.ExecContext(ctx, query,
		i.ID, i.Name, i.CaloriesPer100g.String(), i.UnitPrice.String(), timestamp(i.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save ingredient: %w", err)
	}
	return nil
}

// GetIngredient retrieves an ingredient by id. Returns (nil, nil) when absent.
func (s *Store) GetIngredient(ctx context.Context, id kinder.IngredientID) (*kinder.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		i                        kinder.Ingredient
		calories, price, created string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, calories_per_100g, unit_price, created_at FROM ingredients WHERE id = ?", id,
	).Scan(&i.ID, &i.Name, &calories, &price, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredient: %w", err)
	}
	i.CaloriesPer100g = mustDecimal(calories)
	i.UnitPrice = mustDecimal(price)
	i.CreatedAt = parseTimestamp(created)
	return &i, nil
}

// ListIngredients returns all ingredients ordered by name.
func (s *Store) ListIngredients(ctx context.Context) ([]kinder.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, calories_per_100g, unit_price, created_at FROM ingredients ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	defer rows.Close()

	var out []kinder.Ingredient
	for rows.Next() {
		var (
			i                        kinder.Ingredient
			calories, price, created string
		)
		if err := rows.Scan(&i.ID, &i.Name, &calories, &price, &created); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		i.CaloriesPer100g = mustDecimal(calories)
		i.UnitPrice = mustDecimal(price)
		i.CreatedAt = parseTimestamp(created)
		out = append(out, i)
	}
	return out, rows.Err()
}

// UpsertDishIngredient sets the quantity for a (dish, ingredient) pair.
func (s *Store) UpsertDishIngredient(ctx context.Context, dishID kinder.DishID, di kinder.DishIngredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO dish_ingredients (dish_id, ingredient_id, quantity_grams)
		VALUES (?, ?, ?)
		ON CONFLICT(dish_id, ingredient_id) DO UPDATE SET
			quantity_grams = excluded.quantity_grams
	`
	_, err := s.db.ExecContext(ctx, query, dishID, di.IngredientID, di.QuantityGrams.String())
	if err != nil {
		return fmt.Errorf("failed to upsert dish ingredient: %w", err)
	}
	return nil
}

// RemoveDishIngredient deletes a (dish, ingredient) pair.
func (s *Store) RemoveDishIngredient(ctx context.Context, dishID kinder.DishID, ingredientID kinder.IngredientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM dish_ingredients WHERE dish_id = ? AND ingredient_id = ?",
		dishID, ingredientID)
	if err != nil {
		return fmt.Errorf("failed to remove dish ingredient: %w", err)
	}
	return nil
}

// ListDishIngredients returns a dish's composition.
func (s *Store) ListDishIngredients(ctx context.Context, dishID kinder.DishID) ([]kinder.DishIngredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT ingredient_id, quantity_grams FROM dish_ingredients WHERE dish_id = ?", dishID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dish ingredients: %w", err)
	}
	defer rows.Close()

	var out []kinder.DishIngredient
	for rows.Next() {
		var (
			di       kinder.DishIngredient
			quantity string
		)
		if err := rows.Scan(&di.IngredientID, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan dish ingredient: %w", err)
		}
		di.QuantityGrams = mustDecimal(quantity)
		out = append(out, di)
	}
	return out, rows.Err()
}

// =============================================================================
// ATTENDANCE STORE (kinder.AttendanceStore interface)
// =============================================================================

// InsertAttendance inserts a new record. The idx_attendance_student_date
// unique index turns a duplicate (student, date) into a ConflictError.
func (s *Store) InsertAttendance(ctx context.Context, rec kinder.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO attendance
		(id, student_id, class_id, date, status, excused_absence, daily_meal_refund, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.StudentID, rec.ClassID, rec.Date.String(), rec.Status,
		boolInt(rec.ExcusedAbsence), rec.DailyMealRefund.String(),
		timestamp(rec.CreatedAt), timestamp(rec.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &kinder.ConflictError{
				Entity: "attendance record",
				Key:    fmt.Sprintf("student=%s date=%s", rec.StudentID, rec.Date),
			}
		}
		return fmt.Errorf("failed to insert attendance: %w", err)
	}
	return nil
}

// UpdateAttendance rewrites a record's mutable fields.
func (s *Store) UpdateAttendance(ctx context.Context, rec kinder.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance
		SET status = ?, excused_absence = ?, daily_meal_refund = ?, updated_at = ?
		WHERE id = ?`,
		rec.Status, boolInt(rec.ExcusedAbsence), rec.DailyMealRefund.String(),
		timestamp(rec.UpdatedAt), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update attendance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &kinder.NotFoundError{Entity: "attendance record", ID: rec.ID}
	}
	return nil
}

// GetAttendance retrieves a record by id. Returns (nil, nil) when absent.
func (s *Store) GetAttendance(ctx context.Context, id string) (*kinder.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, attendanceSelect+" WHERE id = ?", id)
	return scanAttendance(row)
}

// GetAttendanceByStudentDate retrieves the record for (student, date).
// Returns (nil, nil) when absent.
func (s *Store) GetAttendanceByStudentDate(ctx context.Context, studentID kinder.StudentID, date kinder.Date) (*kinder.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		attendanceSelect+" WHERE student_id = ? AND date = ?", studentID, date.String())
	return scanAttendance(row)
}

// ListAttendanceByClassDate returns a class's records for a date.
func (s *Store) ListAttendanceByClassDate(ctx context.Context, classID kinder.ClassID, date kinder.Date) ([]kinder.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAttendance(ctx,
		attendanceSelect+" WHERE class_id = ? AND date = ? ORDER BY student_id",
		classID, date.String())
}

// ListExcusedAbsences returns excused-absence records in [from, to].
func (s *Store) ListExcusedAbsences(ctx context.Context, studentID kinder.StudentID, from, to kinder.Date) ([]kinder.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAttendance(ctx,
		attendanceSelect+` WHERE student_id = ? AND excused_absence = 1
			AND date >= ? AND date <= ? ORDER BY date`,
		studentID, from.String(), to.String())
}

// DeleteAttendance removes a record by id.
func (s *Store) DeleteAttendance(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM attendance WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete attendance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &kinder.NotFoundError{Entity: "attendance record", ID: id}
	}
	return nil
}

const attendanceSelect = `
	SELECT id, student_id, class_id, date, status, excused_absence, daily_meal_refund, created_at, updated_at
	FROM attendance`

func (s *Store) queryAttendance(ctx context.Context, query string, args ...any) ([]kinder.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []kinder.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanAttendance(row scanner) (*kinder.AttendanceRecord, error) {
	var (
		rec                  kinder.AttendanceRecord
		date, refund         string
		excused              int
		createdAt, updatedAt string
	)
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &date, &rec.Status,
		&excused, &refund, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan attendance: %w", err)
	}
	rec.Date, _ = kinder.ParseDate(date)
	rec.ExcusedAbsence = excused != 0
	rec.DailyMealRefund = mustDecimal(refund)
	rec.CreatedAt = parseTimestamp(createdAt)
	rec.UpdatedAt = parseTimestamp(updatedAt)
	return &rec, nil
}

// =============================================================================
// TICKET STORE (kinder.TicketStore interface)
// =============================================================================

// InsertTicket inserts a ticket. The idx_tickets_triple unique index turns
// a duplicate (student, menu, date) into a ConflictError.
func (s *Store) InsertTicket(ctx context.Context, t kinder.MealTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO meal_tickets (id, student_id, menu_id, date, consumed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.StudentID, t.MenuID, t.Date.String(), boolInt(t.Consumed), timestamp(t.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return &kinder.ConflictError{
				Entity: "meal ticket",
				Key:    fmt.Sprintf("student=%s menu=%s date=%s", t.StudentID, t.MenuID, t.Date),
			}
		}
		return fmt.Errorf("failed to insert ticket: %w", err)
	}
	return nil
}

// TicketExists checks the (student, menu, date) triple.
func (s *Store) TicketExists(ctx context.Context, studentID kinder.StudentID, menuID kinder.MenuID, date kinder.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM meal_tickets WHERE student_id = ? AND menu_id = ? AND date = ?",
		studentID, menuID, date.String(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check ticket: %w", err)
	}
	return count > 0, nil
}

// ListTicketsByStudentDate returns a student's tickets for a date.
func (s *Store) ListTicketsByStudentDate(ctx context.Context, studentID kinder.StudentID, date kinder.Date) ([]kinder.MealTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, student_id, menu_id, date, consumed, created_at FROM meal_tickets WHERE student_id = ? AND date = ?",
		studentID, date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []kinder.MealTicket
	for rows.Next() {
		var (
			t                  kinder.MealTicket
			dateStr, createdAt string
			consumed           int
		)
		if err := rows.Scan(&t.ID, &t.StudentID, &t.MenuID, &dateStr, &consumed, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		t.Date, _ = kinder.ParseDate(dateStr)
		t.Consumed = consumed != 0
		t.CreatedAt = parseTimestamp(createdAt)
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// DeleteUnconsumedTickets removes the student's unconsumed tickets for a
// date and reports how many went away. Consumed tickets are never touched;
// the WHERE clause is the enforcement, not caller discipline.
func (s *Store) DeleteUnconsumedTickets(ctx context.Context, studentID kinder.StudentID, date kinder.Date) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM meal_tickets WHERE student_id = ? AND date = ? AND consumed = 0",
		studentID, date.String())
	if err != nil {
		return 0, fmt.Errorf("failed to delete unconsumed tickets: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// MarkTicketConsumed flags a ticket as served.
func (s *Store) MarkTicketConsumed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE meal_tickets SET consumed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to mark ticket consumed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &kinder.NotFoundError{Entity: "meal ticket", ID: id}
	}
	return nil
}

// =============================================================================
// INVOICE STORE (kinder.InvoiceStore interface)
// =============================================================================

// InsertInvoice inserts an invoice. The idx_invoices_student_period unique
// index turns a duplicate (student, period, kind) into a ConflictError.
func (s *Store) InsertInvoice(ctx context.Context, inv kinder.TuitionInvoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO invoices
		(id, student_id, period, kind, amount, status, base_tuition, meal_refund_applied, carried_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		inv.ID, inv.StudentID, inv.Period.String(), inv.Kind, inv.Amount.String(), inv.Status,
		inv.BaseTuition.String(), inv.MealRefundApplied.String(), inv.CarriedBalance.String(),
		timestamp(inv.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &kinder.ConflictError{
				Entity: "invoice",
				Key:    fmt.Sprintf("student=%s period=%s kind=%s", inv.StudentID, inv.Period, inv.Kind),
			}
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

// InvoiceExists checks the (student, period, kind) triple.
func (s *Store) InvoiceExists(ctx context.Context, studentID kinder.StudentID, period kinder.Period, kind kinder.InvoiceKind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM invoices WHERE student_id = ? AND period = ? AND kind = ?",
		studentID, period.String(), kind,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice: %w", err)
	}
	return count > 0, nil
}

// ListInvoicesByPeriod returns all invoices for a billing period.
func (s *Store) ListInvoicesByPeriod(ctx context.Context, period kinder.Period) ([]kinder.TuitionInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, period, kind, amount, status, base_tuition, meal_refund_applied, carried_balance, created_at
		FROM invoices WHERE period = ? ORDER BY student_id`,
		period.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []kinder.TuitionInvoice
	for rows.Next() {
		var (
			inv                                               kinder.TuitionInvoice
			periodStr, amount, base, refund, carried, created string
		)
		if err := rows.Scan(&inv.ID, &inv.StudentID, &periodStr, &inv.Kind, &amount,
			&inv.Status, &base, &refund, &carried, &created); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.Period, _ = kinder.ParsePeriod(periodStr)
		inv.Amount = mustDecimal(amount)
		inv.BaseTuition = mustDecimal(base)
		inv.MealRefundApplied = mustDecimal(refund)
		inv.CarriedBalance = mustDecimal(carried)
		inv.CreatedAt = parseTimestamp(created)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// UpdateInvoiceStatus moves an invoice through its payment lifecycle.
func (s *Store) UpdateInvoiceStatus(ctx context.Context, id string, status kinder.InvoiceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE invoices SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &kinder.NotFoundError{Entity: "invoice", ID: id}
	}
	return nil
}

// =============================================================================
// LEAVE STORE (kinder.LeaveStore interface)
// =============================================================================

// InsertLeave inserts a leave request.
func (s *Store) InsertLeave(ctx context.Context, r kinder.StaffLeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leave_requests
		(id, user_id, start_date, end_date, reason, status, approver_id, decided_at, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.UserID, r.StartDate.String(), r.EndDate.String(), r.Reason, r.Status,
		nullString(string(r.ApproverID)), nullTime(r.DecidedAt), r.Notes,
		timestamp(r.CreatedAt), timestamp(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert leave request: %w", err)
	}
	return nil
}

// UpdateLeave rewrites a leave request.
func (s *Store) UpdateLeave(ctx context.Context, r kinder.StaffLeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_requests
		SET start_date = ?, end_date = ?, reason = ?, status = ?,
		    approver_id = ?, decided_at = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		r.StartDate.String(), r.EndDate.String(), r.Reason, r.Status,
		nullString(string(r.ApproverID)), nullTime(r.DecidedAt), r.Notes,
		timestamp(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &kinder.NotFoundError{Entity: "leave request", ID: r.ID}
	}
	return nil
}

// DeleteLeave removes a leave request by id.
func (s *Store) DeleteLeave(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM leave_requests WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete leave request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &kinder.NotFoundError{Entity: "leave request", ID: id}
	}
	return nil
}

// GetLeave retrieves a leave request by id. Returns (nil, nil) when absent.
func (s *Store) GetLeave(ctx context.Context, id string) (*kinder.StaffLeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, leaveSelect+" WHERE id = ?", id)
	return scanLeave(row)
}

// ListLeaveByUser returns all of a user's leave requests, newest first.
func (s *Store) ListLeaveByUser(ctx context.Context, userID kinder.UserID) ([]kinder.StaffLeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeave(ctx, leaveSelect+" WHERE user_id = ? ORDER BY start_date DESC", userID)
}

// ListLeaveByStatus returns all requests in a given status.
func (s *Store) ListLeaveByStatus(ctx context.Context, status kinder.LeaveStatus) ([]kinder.StaffLeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeave(ctx, leaveSelect+" WHERE status = ? ORDER BY start_date", status)
}

// CountOverlapping counts pending and approved requests for the user whose
// closed date range intersects [start, end], excluding excludeID.
func (s *Store) CountOverlapping(ctx context.Context, userID kinder.UserID, start, end kinder.Date, excludeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM leave_requests
		WHERE user_id = ?
		  AND status IN (?, ?)
		  AND start_date <= ?
		  AND end_date >= ?
		  AND id != ?`,
		userID, kinder.LeavePending, kinder.LeaveApproved,
		end.String(), start.String(), excludeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping leave: %w", err)
	}
	return count, nil
}

const leaveSelect = `
	SELECT id, user_id, start_date, end_date, reason, status, approver_id, decided_at, notes, created_at, updated_at
	FROM leave_requests`

func (s *Store) queryLeave(ctx context.Context, query string, args ...any) ([]kinder.StaffLeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var requests []kinder.StaffLeaveRequest
	for rows.Next() {
		r, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

func scanLeave(row scanner) (*kinder.StaffLeaveRequest, error) {
	var (
		r                    kinder.StaffLeaveRequest
		startDate, endDate   string
		reason, approver     sql.NullString
		decidedAt, notes     sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &r.UserID, &startDate, &endDate, &reason, &r.Status,
		&approver, &decidedAt, &notes, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan leave request: %w", err)
	}
	r.StartDate, _ = kinder.ParseDate(startDate)
	r.EndDate, _ = kinder.ParseDate(endDate)
	r.Reason = reason.String
	r.ApproverID = kinder.UserID(approver.String)
	if decidedAt.Valid && decidedAt.String != "" {
		t := parseTimestamp(decidedAt.String)
		r.DecidedAt = &t
	}
	r.Notes = notes.String
	r.CreatedAt = parseTimestamp(createdAt)
	r.UpdatedAt = parseTimestamp(updatedAt)
	return &r, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

package server

import "testing"

func newTestSlots() (*PlayerSlot, *PlayerSlot) {
	host := &PlayerSlot{Role: RoleHost, Color: ColorYellow, Lives: 3}
	guest := &PlayerSlot{Role: RoleGuest, Color: ColorGreen, Lives: 3}
	return host, guest
}

func TestBuildBotQueueIsDeterministicPerRoomID(t *testing.T) {
	q1 := buildBotQueue("AB12CD")
	q2 := buildBotQueue("AB12CD")
	if len(q1) != BotQueueSize {
		t.Fatalf("expected %d bots in queue, got %d", BotQueueSize, len(q1))
	}
	for i := range q1 {
		if q1[i] != q2[i] {
			t.Fatalf("bot queue for the same room id diverged at index %d: %v vs %v", i, q1[i], q2[i])
		}
	}
}

func TestBuildBotQueueDiffersAcrossRoomIDs(t *testing.T) {
	q1 := buildBotQueue("AAAAAA")
	q2 := buildBotQueue("ZZZZZZ")
	same := true
	for i := range q1 {
		if q1[i] != q2[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different room ids to produce different shuffles")
	}
}

func TestNewEngineSpawnsPlayersAndInitialBurst(t *testing.T) {
	host, guest := newTestSlots()
	e := NewEngine("ROOM01", host, guest, nil, &RoomMetrics{}, false)

	if !host.HasActiveTank || !guest.HasActiveTank {
		t.Fatal("both slots should have an active tank immediately after construction")
	}
	botCount := 0
	for _, tank := range e.Tanks {
		if tank.Side == SideBot {
			botCount++
		}
	}
	if botCount != InitialBotBurst {
		t.Fatalf("expected %d bots from the initial burst, got %d", InitialBotBurst, botCount)
	}
	if e.RemainingBots() != BotQueueSize-InitialBotBurst {
		t.Fatalf("expected %d bots remaining, got %d", BotQueueSize-InitialBotBurst, e.RemainingBots())
	}
}

func TestFriendlyFireIsSuppressed(t *testing.T) {
	host, guest := newTestSlots()
	e := NewEngine("ROOM02", host, guest, nil, &RoomMetrics{}, false)

	hostTank := e.Tanks[host.ActiveTankID]
	guestTank := e.Tanks[guest.ActiveTankID]
	guestTank.X, guestTank.Y = hostTank.X, hostTank.Y

	bulletID := e.nextBullet()
	e.Bullets[bulletID] = &Bullet{ID: bulletID, X: hostTank.X, Y: hostTank.Y, Dir: DirUp, Speed: 0, TankID: hostTank.ID, Power: 1}

	startingHP := guestTank.HP
	e.bulletTankCollisions()

	if guestTank.HP != startingHP {
		t.Fatalf("friendly fire should not damage the target, HP changed from %d to %d", startingHP, guestTank.HP)
	}
	if _, exists := e.Bullets[bulletID]; exists {
		t.Fatal("bullet should still be consumed on a friendly-fire overlap")
	}
}

func TestPlayerBulletDamagesBot(t *testing.T) {
	host, guest := newTestSlots()
	e := NewEngine("ROOM03", host, guest, nil, &RoomMetrics{}, false)

	hostTank := e.Tanks[host.ActiveTankID]
	var bot *Tank
	for _, tank := range e.Tanks {
		if tank.Side == SideBot {
			bot = tank
			break
		}
	}
	if bot == nil {
		t.Fatal("expected at least one bot tank")
	}
	bot.X, bot.Y = hostTank.X, hostTank.Y
	bot.HP = 1

	bulletID := e.nextBullet()
	e.Bullets[bulletID] = &Bullet{ID: bulletID, X: hostTank.X, Y: hostTank.Y, Dir: DirUp, Speed: 0, TankID: hostTank.ID, Power: 1}
	e.bulletTankCollisions()

	if bot.Alive {
		t.Fatal("bot at 1 HP hit by a player bullet should die")
	}
}

func TestBotBulletBlockedByHelmet(t *testing.T) {
	host, guest := newTestSlots()
	e := NewEngine("ROOM04", host, guest, nil, &RoomMetrics{}, false)

	hostTank := e.Tanks[host.ActiveTankID]
	hostTank.HelmetDuration = SpawnHelmetMs

	var bot *Tank
	for _, tank := range e.Tanks {
		if tank.Side == SideBot {
			bot = tank
			break
		}
	}
	bulletID := e.nextBullet()
	e.Bullets[bulletID] = &Bullet{ID: bulletID, X: hostTank.X, Y: hostTank.Y, Dir: DirUp, Speed: 0, TankID: bot.ID, Power: 1}

	e.bulletTankCollisions()
	if !hostTank.Alive {
		t.Fatal("a helmeted player tank should not be destroyed by a bot bullet")
	}
}

func TestOrphanBulletIsDestroyed(t *testing.T) {
	host, guest := newTestSlots()
	e := NewEngine("ROOM05", host, guest, nil, &RoomMetrics{}, false)

	bulletID := e.nextBullet()
	e.Bullets[bulletID] = &Bullet{ID: bulletID, X: 0, Y: 0, Dir: DirUp, Speed: 0, TankID: 99999, Power: 1}
	e.bulletTankCollisions()

	if _, exists := e.Bullets[bulletID]; exists {
		t.Fatal("a bullet whose owner no longer exists should be destroyed")
	}
}

func TestBulletDestroysBrickButLowPowerLeavesSteel(t *testing.T) {
	host, guest := newTestSlots()
	e := NewEngine("ROOM06", host, guest, nil, &RoomMetrics{}, false)
	e.Map.Bricks[0] = true // col 0, row 0
	e.Map.Steels[0] = true // col 0, row 0

	brickBulletID := e.nextBullet()
	e.Bullets[brickBulletID] = &Bullet{ID: brickBulletID, X: 0, Y: 0, Dir: DirUp, Speed: 0, TankID: host.ActiveTankID, Power: 1}
	e.bulletWallCollisions()
	if e.Map.BrickAt(0, 0) {
		t.Fatal("brick should be destroyed regardless of bullet power")
	}
	if !e.Map.SteelAt(0, 0) {
		t.Fatal("steel should survive a power=1 bullet")
	}
	if _, exists := e.Bullets[brickBulletID]; exists {
		t.Fatal("bullet should be consumed on any wall hit")
	}
}

func TestBulletPowerThreeDestroysSteel(t *testing.T) {
	host, guest := newTestSlots()
	e := NewEngine("ROOM07", host, guest, nil, &RoomMetrics{}, false)
	e.Map.Steels[0] = true

	bulletID := e.nextBullet()
	e.Bullets[bulletID] = &Bullet{ID: bulletID, X: 0, Y: 0, Dir: DirUp, Speed: 0, TankID: host.ActiveTankID, Power: 3}
	e.bulletWallCollisions()
	if e.Map.SteelAt(0, 0) {
		t.Fatal("a power=3 bullet should destroy steel")
	}
}

func TestPlayerRespawnsAfterDeathWithLivesRemaining(t *testing.T) {
	host, guest := newTestSlots()
	e := NewEngine("ROOM08", host, guest, nil, &RoomMetrics{}, false)

	hostTank := e.Tanks[host.ActiveTankID]
	hostTank.Alive = false
	hostTank.HP = 0

	e.markFreshlyDead()
	if host.Lives != 2 {
		t.Fatalf("expected lives to drop from 3 to 2, got %d", host.Lives)
	}
	if host.HasActiveTank {
		t.Fatal("slot should have no active tank immediately after death")
	}

	e.sweepDeadTanks()
	e.elapsedMs = RespawnDelayMs
	e.processRespawns()

	if !host.HasActiveTank {
		t.Fatal("host should have a fresh tank after the respawn delay elapses")
	}
}

func TestBulletDestroysEagleAndEndsGame(t *testing.T) {
	host, guest := newTestSlots()
	e := NewEngine("ROOM10", host, guest, nil, &RoomMetrics{}, false)

	eagleX, eagleY := float64(e.Map.EagleX)*BrickCellSize, float64(e.Map.EagleY)*BrickCellSize
	bulletID := e.nextBullet()
	e.Bullets[bulletID] = &Bullet{ID: bulletID, X: eagleX, Y: eagleY, Dir: DirUp, Speed: 0, TankID: host.ActiveTankID, Power: 1}

	e.bulletWallCollisions()
	if !e.Map.EagleBroken {
		t.Fatal("a bullet overlapping the eagle should break it")
	}
	if _, exists := e.Bullets[bulletID]; exists {
		t.Fatal("the bullet that breaks the eagle should be consumed")
	}

	e.evaluateGameOver()
	if e.Status != GameOver {
		t.Fatal("breaking the eagle should end the game")
	}
}

func TestGameOverWhenBothSlotsExhaustLives(t *testing.T) {
	host, guest := newTestSlots()
	host.Lives = 1
	guest.Lives = 1
	e := NewEngine("ROOM09", host, guest, nil, &RoomMetrics{}, false)

	e.Tanks[host.ActiveTankID].Alive = false
	e.Tanks[guest.ActiveTankID].Alive = false
	e.markFreshlyDead()
	e.evaluateGameOver()

	if e.Status != GameOver {
		t.Fatal("expected the game to end once both slots are out of lives")
	}
}

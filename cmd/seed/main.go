package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/repository"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/seed"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var sessionID int64

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 插入随机教师, 3: 为指定周期随机报名和登记不可用时段, 4: 插入真实数据)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.Int64Var(&sessionID, "session-id", 0, "随机报名的考试周期 ID")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
		} else {
			cnt := n
			for i := 0; i < n; i++ {
				user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Email.UserDomain)
				if err != nil {
					slog.Error("无法生成随机用户", slog.String("error", err.Error()))
					continue
				}

				if err := repo.CreateUser(user); err != nil {
					slog.Error("无法插入用户", slog.String("error", err.Error()))
					continue
				}

				cnt--
			}

			slog.Info("插入用户成功", slog.Int("count", n-cnt))
		}
	case 2:
		if n <= 0 {
			slog.Error("请输入合法的教师数量")
		} else {
			cnt := n
			for i := 0; i < n; i++ {
				teacher := utils.GenerateRandomTeacher(cfg.Email.UserDomain)
				if err := repo.CreateTeacher(teacher); err != nil {
					slog.Error("无法插入教师", slog.String("error", err.Error()))
					continue
				}

				cnt--
			}

			slog.Info("插入教师成功", slog.Int("count", n-cnt))
		}
	case 3:
		if sessionID <= 0 {
			slog.Error("请输入合法的考试周期 ID")
			return
		}

		session, err := repo.GetExamSessionByID(sessionID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				slog.Error("指定的考试周期不存在", slog.Int64("session_id", sessionID))
			default:
				slog.Error("无法获取考试周期", slog.String("error", err.Error()))
			}
			return
		}

		teachers, err := repo.GetAllTeachers()
		if err != nil {
			slog.Error("无法获取教师名册", slog.String("error", err.Error()))
			return
		}

		cnt := 0
		for _, teacher := range teachers {
			enrollment := &domain.SessionTeacher{
				SessionID:    session.ID,
				TeacherID:    teacher.ID,
				Participates: true,
				Quota:        int32(rand.Intn(4) + 2),
			}
			if err := repo.EnrollTeacher(enrollment); err != nil {
				slog.Error("无法登记报名信息", slog.Int64("teacher_id", teacher.ID), slog.String("error", err.Error()))
				continue
			}

			// 大约五分之一的时段被登记为不可用
			for day := int32(1); day <= session.NumDays; day++ {
				for slot := int32(1); slot <= session.SlotsPerDay; slot++ {
					if rand.Intn(5) != 0 {
						continue
					}
					u := &domain.Unavailability{
						SessionID: session.ID,
						TeacherID: teacher.ID,
						Day:       day,
						Slot:      slot,
					}
					if err := repo.InsertUnavailability(u); err != nil {
						slog.Error("无法登记不可用时段", slog.Int64("teacher_id", teacher.ID), slog.String("error", err.Error()))
					}
				}
			}

			cnt++
		}

		slog.Info("随机报名完成", slog.Int("count", cnt))
	case 4:
		seed.SeedRealData(repo)
	default:
		slog.Error("指定的操作非法")
	}
}
